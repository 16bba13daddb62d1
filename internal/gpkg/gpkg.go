// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gpkg writes parcel features into a GeoPackage. A GeoPackage is an
// SQLite database with a fixed set of metadata tables and a binary geometry
// encoding, so the writer is built directly on the sqlite3 driver rather
// than an external GIS dependency.
package gpkg

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

const (
	// SQLite application_id "GPKG" and the GeoPackage 1.3 user_version.
	applicationID = 0x47504B47
	userVersion   = 10300

	markerTable = "marker_point"
	parcelTable = "parcel_polygon"
)

// SRS describes the spatial reference system of every layer in the file.
type SRS struct {
	ID         int
	Name       string
	Definition string
}

// Point is a marker position already expressed in the writer's SRS.
type Point struct {
	PointID string
	Label   string
	X       float64
	Y       float64
}

// ParcelFeature is one deed's worth of features: the boundary ring and the
// markers that define it.
type ParcelFeature struct {
	ParcelID   string
	Office     string
	SurveyType string
	// SourceFile is the edited records file the feature was built from.
	SourceFile string
	Points     []Point
	// Ring is the closed boundary, first coordinate repeated last.
	Ring [][2]float64
}

// Writer appends parcel features to a single GeoPackage file.
type Writer struct {
	db  *sql.DB
	srs SRS
}

// Create opens or creates the GeoPackage at path and ensures the metadata
// tables, the SRS row, and both feature layers exist.
func Create(path string, srs SRS) (*Writer, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening geopackage: %w", err)
	}

	w := &Writer{db: db, srs: srs}
	if err := w.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating geopackage schema: %w", err)
	}
	return w, nil
}

// Close releases the database connection.
func (w *Writer) Close() error {
	return w.db.Close()
}

func (w *Writer) createSchema() error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		fmt.Sprintf("PRAGMA user_version = %d", userVersion),
	}
	for _, p := range pragmas {
		if _, err := w.db.Exec(p); err != nil {
			return fmt.Errorf("setting pragma: %w", err)
		}
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS gpkg_contents (
			table_name TEXT PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER,
			CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
		)`,
		`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
			CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
			CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			fid INTEGER PRIMARY KEY AUTOINCREMENT,
			geom BLOB,
			parcel_id TEXT NOT NULL,
			point_id TEXT NOT NULL,
			label TEXT
		)`, markerTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			fid INTEGER PRIMARY KEY AUTOINCREMENT,
			geom BLOB,
			parcel_id TEXT NOT NULL UNIQUE,
			office TEXT,
			survey_type TEXT,
			source_file TEXT,
			marker_count INTEGER NOT NULL
		)`, parcelTable),
	}
	for _, stmt := range statements {
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// Mandatory SRS bootstrap rows plus the layer SRS.
	srsRows := []SRS{
		{ID: -1, Name: "Undefined cartesian SRS", Definition: "undefined"},
		{ID: 0, Name: "Undefined geographic SRS", Definition: "undefined"},
		w.srs,
	}
	for _, s := range srsRows {
		org, orgID := "NONE", s.ID
		if s.ID > 0 {
			org = "EPSG"
		}
		if _, err := w.db.Exec(
			`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
				(srs_name, srs_id, organization, organization_coordsys_id, definition)
				VALUES (?, ?, ?, ?, ?)`,
			s.Name, s.ID, org, orgID, s.Definition,
		); err != nil {
			return fmt.Errorf("inserting SRS %d: %w", s.ID, err)
		}
	}

	layers := []struct {
		table    string
		geomType string
	}{
		{markerTable, "POINT"},
		{parcelTable, "POLYGON"},
	}
	for _, l := range layers {
		if _, err := w.db.Exec(
			`INSERT OR IGNORE INTO gpkg_contents (table_name, data_type, identifier, srs_id)
				VALUES (?, 'features', ?, ?)`,
			l.table, l.table, w.srs.ID,
		); err != nil {
			return fmt.Errorf("registering layer %s: %w", l.table, err)
		}
		if _, err := w.db.Exec(
			`INSERT OR IGNORE INTO gpkg_geometry_columns
				(table_name, column_name, geometry_type_name, srs_id, z, m)
				VALUES (?, 'geom', ?, ?, 0, 0)`,
			l.table, l.geomType, w.srs.ID,
		); err != nil {
			return fmt.Errorf("registering geometry column for %s: %w", l.table, err)
		}
	}

	return nil
}

// WriteParcel inserts one parcel's polygon and marker points in a single
// transaction, replacing any earlier rows for the same parcel id so that
// re-export is idempotent.
func (w *Writer) WriteParcel(f ParcelFeature) error {
	if len(f.Ring) < 4 {
		return fmt.Errorf("parcel %s: ring has %d coordinates, need at least 4", f.ParcelID, len(f.Ring))
	}

	ringCoords := make([]geom.Coord, len(f.Ring))
	for i, c := range f.Ring {
		ringCoords[i] = geom.Coord{c[0], c[1]}
	}
	poly := geom.NewPolygon(geom.XY)
	if _, err := poly.SetCoords([][]geom.Coord{ringCoords}); err != nil {
		return fmt.Errorf("parcel %s: building polygon: %w", f.ParcelID, err)
	}
	polyBlob, err := encodeGeometry(poly, w.srs.ID)
	if err != nil {
		return fmt.Errorf("parcel %s: encoding polygon: %w", f.ParcelID, err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE parcel_id = ?`, markerTable), f.ParcelID); err != nil {
		return fmt.Errorf("parcel %s: clearing markers: %w", f.ParcelID, err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE parcel_id = ?`, parcelTable), f.ParcelID); err != nil {
		return fmt.Errorf("parcel %s: clearing polygon: %w", f.ParcelID, err)
	}

	if _, err := tx.Exec(
		fmt.Sprintf(`INSERT INTO %s (geom, parcel_id, office, survey_type, source_file, marker_count)
			VALUES (?, ?, ?, ?, ?, ?)`, parcelTable),
		polyBlob, f.ParcelID, f.Office, f.SurveyType, f.SourceFile, len(f.Points),
	); err != nil {
		return fmt.Errorf("parcel %s: inserting polygon: %w", f.ParcelID, err)
	}

	for _, pt := range f.Points {
		ptGeom := geom.NewPointFlat(geom.XY, []float64{pt.X, pt.Y})
		blob, err := encodeGeometry(ptGeom, w.srs.ID)
		if err != nil {
			return fmt.Errorf("parcel %s point %s: encoding: %w", f.ParcelID, pt.PointID, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT INTO %s (geom, parcel_id, point_id, label) VALUES (?, ?, ?, ?)`, markerTable),
			blob, f.ParcelID, pt.PointID, pt.Label,
		); err != nil {
			return fmt.Errorf("parcel %s point %s: inserting: %w", f.ParcelID, pt.PointID, err)
		}
	}

	if err := w.updateExtents(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// updateExtents refreshes the layer bounding boxes in gpkg_contents. Each
// layer carries its own extent.
func (w *Writer) updateExtents(tx *sql.Tx) error {
	for _, table := range []string{markerTable, parcelTable} {
		bounds, err := boundsIn(tx, table)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`UPDATE gpkg_contents
				SET min_x = ?, min_y = ?, max_x = ?, max_y = ?,
				    last_change = strftime('%Y-%m-%dT%H:%M:%fZ','now')
				WHERE table_name = ?`,
			bounds[0], bounds[1], bounds[2], bounds[3], table,
		); err != nil {
			return fmt.Errorf("updating extent of %s: %w", table, err)
		}
	}
	return nil
}

// boundsIn returns min_x, min_y, max_x, max_y across a layer's geometries,
// taken from the per-feature envelope headers. It reads through the
// transaction so rows from the parcel being written are included.
func boundsIn(tx *sql.Tx, table string) ([4]float64, error) {
	b := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	rows, err := tx.Query(fmt.Sprintf(`SELECT geom FROM %s`, table))
	if err != nil {
		return b, fmt.Errorf("reading geometries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return b, err
		}
		if len(blob) < headerSize {
			continue
		}
		minX := math.Float64frombits(binary.LittleEndian.Uint64(blob[8:16]))
		maxX := math.Float64frombits(binary.LittleEndian.Uint64(blob[16:24]))
		minY := math.Float64frombits(binary.LittleEndian.Uint64(blob[24:32]))
		maxY := math.Float64frombits(binary.LittleEndian.Uint64(blob[32:40]))
		b[0] = math.Min(b[0], minX)
		b[1] = math.Min(b[1], minY)
		b[2] = math.Max(b[2], maxX)
		b[3] = math.Max(b[3], maxY)
	}
	return b, rows.Err()
}

// headerSize is the GeoPackage binary header with an XY envelope:
// magic(2) + version(1) + flags(1) + srs_id(4) + envelope(4*8).
const headerSize = 40

// encodeGeometry wraps a geometry's WKB in the GeoPackage binary header.
func encodeGeometry(g geom.T, srsID int) ([]byte, error) {
	wkbData, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	bounds := g.Bounds()
	buf := make([]byte, headerSize, headerSize+len(wkbData))
	buf[0], buf[1] = 'G', 'P'
	buf[2] = 0 // version 1 of the encoding
	// Flags: little-endian header, envelope indicator 1 (XY).
	buf[3] = 0b0000_0011
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(srsID)))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(bounds.Min(0)))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(bounds.Max(0)))
	binary.LittleEndian.PutUint64(buf[24:32], math.Float64bits(bounds.Min(1)))
	binary.LittleEndian.PutUint64(buf[32:40], math.Float64bits(bounds.Max(1)))
	return append(buf, wkbData...), nil
}

// CountFeatures reports how many rows each layer holds.
func (w *Writer) CountFeatures() (markers, parcels int, err error) {
	if err = w.db.QueryRow(fmt.Sprintf(`SELECT count(*) FROM %s`, markerTable)).Scan(&markers); err != nil {
		return 0, 0, fmt.Errorf("counting markers: %w", err)
	}
	if err = w.db.QueryRow(fmt.Sprintf(`SELECT count(*) FROM %s`, parcelTable)).Scan(&parcels); err != nil {
		return 0, 0, fmt.Errorf("counting parcels: %w", err)
	}
	return markers, parcels, nil
}
