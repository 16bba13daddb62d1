// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gpkg

import (
	"database/sql"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func testSRS() SRS {
	return SRS{
		ID:         32647,
		Name:       "WGS 84 / UTM zone 47N",
		Definition: "PROJCS[...]",
	}
}

func squareFeature(parcelID string) ParcelFeature {
	return ParcelFeature{
		ParcelID:   parcelID,
		Office:     "Narathivas",
		SurveyType: "MAP-L1",
		SourceFile: parcelID + "_OCRedit.toml",
		Points: []Point{
			{PointID: "A", Label: "19", X: 810000, Y: 1500000},
			{PointID: "B", Label: "20", X: 810100, Y: 1500000},
			{PointID: "C", Label: "21", X: 810100, Y: 1500080},
		},
		Ring: [][2]float64{
			{810000, 1500000}, {810100, 1500000}, {810100, 1500080}, {810000, 1500000},
		},
	}
}

func TestCreateWritesGeoPackageMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_W84.gpkg")
	w, err := Create(path, testSRS())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var appID int
	require.NoError(t, db.QueryRow("PRAGMA application_id").Scan(&appID))
	assert.Equal(t, 0x47504B47, appID)

	var n int
	require.NoError(t, db.QueryRow(
		"SELECT count(*) FROM gpkg_contents WHERE data_type = 'features'").Scan(&n))
	assert.Equal(t, 2, n, "both layers registered")

	var def string
	require.NoError(t, db.QueryRow(
		"SELECT definition FROM gpkg_spatial_ref_sys WHERE srs_id = 32647").Scan(&def))
	assert.Equal(t, "PROJCS[...]", def)
}

func TestWriteParcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_W84.gpkg")
	w, err := Create(path, testSRS())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteParcel(squareFeature("ch_100")))

	markers, parcels, err := w.CountFeatures()
	require.NoError(t, err)
	assert.Equal(t, 3, markers)
	assert.Equal(t, 1, parcels)
}

func TestParcelFeatureAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_W84.gpkg")
	w, err := Create(path, testSRS())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteParcel(squareFeature("ch_100")))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var parcelID, sourceFile string
	var count int
	require.NoError(t, db.QueryRow(
		"SELECT parcel_id, source_file, marker_count FROM parcel_polygon").
		Scan(&parcelID, &sourceFile, &count))
	assert.Equal(t, "ch_100", parcelID)
	assert.Equal(t, "ch_100_OCRedit.toml", sourceFile)
	assert.Equal(t, 3, count)
}

func TestWriteParcelIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_W84.gpkg")
	w, err := Create(path, testSRS())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteParcel(squareFeature("ch_100")))
	require.NoError(t, w.WriteParcel(squareFeature("ch_100")))

	markers, parcels, err := w.CountFeatures()
	require.NoError(t, err)
	assert.Equal(t, 3, markers, "re-export replaces rows instead of appending")
	assert.Equal(t, 1, parcels)
}

func TestWriteParcelRejectsOpenRing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_W84.gpkg")
	w, err := Create(path, testSRS())
	require.NoError(t, err)
	defer w.Close()

	f := squareFeature("ch_100")
	f.Ring = f.Ring[:3]
	err = w.WriteParcel(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ring")
}

func TestGeometryHeader(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{810050, 1500040})
	blob, err := encodeGeometry(pt, 32647)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(blob), headerSize)

	assert.Equal(t, byte('G'), blob[0])
	assert.Equal(t, byte('P'), blob[1])
	assert.Equal(t, byte(0), blob[2])
	assert.Equal(t, byte(0b0000_0011), blob[3], "little-endian header with XY envelope")
	assert.Equal(t, int32(32647), int32(binary.LittleEndian.Uint32(blob[4:8])))

	minX := math.Float64frombits(binary.LittleEndian.Uint64(blob[8:16]))
	maxY := math.Float64frombits(binary.LittleEndian.Uint64(blob[32:40]))
	assert.Equal(t, 810050.0, minX)
	assert.Equal(t, 1500040.0, maxY)
}

func TestExtentsCoverAllParcels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_W84.gpkg")
	w, err := Create(path, testSRS())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteParcel(squareFeature("ch_100")))
	second := squareFeature("ch_200")
	for i := range second.Points {
		second.Points[i].X += 5000
		second.Points[i].Y += 5000
	}
	for i := range second.Ring {
		second.Ring[i][0] += 5000
		second.Ring[i][1] += 5000
	}
	require.NoError(t, w.WriteParcel(second))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var minX, maxX float64
	require.NoError(t, db.QueryRow(
		"SELECT min_x, max_x FROM gpkg_contents WHERE table_name = 'parcel_polygon'").
		Scan(&minX, &maxX))
	assert.Equal(t, 810000.0, minX)
	assert.Equal(t, 815100.0, maxX)
}

func TestExtentsArePerLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_W84.gpkg")
	w, err := Create(path, testSRS())
	require.NoError(t, err)
	defer w.Close()

	// A ring vertex past every marker point separates the layer extents.
	f := squareFeature("ch_100")
	f.Ring = [][2]float64{
		{810000, 1500000}, {810100, 1500000}, {810200, 1500200},
		{810100, 1500080}, {810000, 1500000},
	}
	require.NoError(t, w.WriteParcel(f))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	layerExtent := func(table string) (maxX, maxY float64) {
		t.Helper()
		require.NoError(t, db.QueryRow(
			"SELECT max_x, max_y FROM gpkg_contents WHERE table_name = ?", table).
			Scan(&maxX, &maxY))
		return maxX, maxY
	}

	maxX, maxY := layerExtent(markerTable)
	assert.Equal(t, 810100.0, maxX)
	assert.Equal(t, 1500080.0, maxY)

	maxX, maxY = layerExtent(parcelTable)
	assert.Equal(t, 810200.0, maxX)
	assert.Equal(t, 1500200.0, maxY)
}
