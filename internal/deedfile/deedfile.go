// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deedfile reads and writes the structured deed record files that the
// pipeline stages pass between each other, and owns the file naming contract
// every stage relies on for discovery:
//
//	<base>_table.jpg     cropped coordinate table (selector output)
//	<base>_OCR.toml      raw extraction (extractor output, audit copy)
//	<base>_OCRedit.toml  verified records (editor output, exporter input)
//	<base>_plot.png      boundary plot (derived, never read back)
//
// Loading is tolerant at the record level: a marker whose coordinates are not
// numeric is returned flagged unverified with its raw text preserved, so a
// noisy OCR run never aborts the file. Structural problems — a missing marker
// table, a non-string point identifier, an unusable EPSG code — are reported
// as *types.SchemaError.
package deedfile

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/surveyth/cadastre-engine/pkg/types"
)

// Suffixes of the pipeline file contract.
const (
	TableSuffix = "_table.jpg"
	OCRSuffix   = "_OCR.toml"
	EditSuffix  = "_OCRedit.toml"
	PlotSuffix  = "_plot.png"
)

// BaseName strips any pipeline suffix from a path and returns the parcel
// basename: "scans/p08_OCRedit.toml" -> "p08".
func BaseName(path string) string {
	name := filepath.Base(path)
	for _, suffix := range []string{TableSuffix, OCRSuffix, EditSuffix, PlotSuffix} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Split returns the directory and parcel basename of any pipeline path.
func Split(path string) (dir, base string) {
	return filepath.Dir(path), BaseName(path)
}

// TablePath returns the cropped table image path for a parcel basename.
func TablePath(dir, base string) string { return filepath.Join(dir, base+TableSuffix) }

// OCRPath returns the raw extraction file path for a parcel basename.
func OCRPath(dir, base string) string { return filepath.Join(dir, base+OCRSuffix) }

// EditPath returns the verified records file path for a parcel basename.
func EditPath(dir, base string) string { return filepath.Join(dir, base+EditSuffix) }

// PlotPath returns the boundary plot path for a parcel basename.
func PlotPath(dir, base string) string { return filepath.Join(dir, base+PlotSuffix) }

// fileDoc is the on-disk TOML layout: a [meta] table and a [[marker]] array.
type fileDoc struct {
	Meta   types.Parcel   `toml:"meta"`
	Marker []types.Marker `toml:"marker"`
}

// Save writes the parcel to path as TOML, creating parent directories as
// needed. The write goes through a temporary file and rename so a failed run
// never leaves a truncated deed file behind.
func Save(path string, p *types.Parcel) error {
	doc := fileDoc{Meta: *p, Marker: p.Markers}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// wireMarker admits any TOML type for the fields OCR can garble. The typed
// conversion happens in convertMarker.
type wireMarker struct {
	PointID  any    `toml:"point_id"`
	Label    any    `toml:"label"`
	Easting  any    `toml:"easting"`
	Northing any    `toml:"northing"`
	Flag     string `toml:"flag"`
	Raw      string `toml:"raw"`
}

type wireMeta struct {
	ParcelID    string    `toml:"parcel_id"`
	SourceImage string    `toml:"source_image"`
	Office      string    `toml:"office"`
	SurveyType  string    `toml:"survey_type"`
	Datum       string    `toml:"datum"`
	EPSG        any       `toml:"epsg"`
	ExtractedAt time.Time `toml:"extracted_at"`
	Engine      string    `toml:"engine"`
}

type wireDoc struct {
	Meta   wireMeta     `toml:"meta"`
	Marker []wireMarker `toml:"marker"`
}

// Load reads a deed file. defaultEPSG is used when the file does not declare
// its own datum code (0 falls back to types.DefaultEPSG).
func Load(path string, defaultEPSG int) (*types.Parcel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc wireDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, types.NewSchemaError(path, "", "not a valid deed file: %v", err)
	}

	epsg, err := coerceEPSG(doc.Meta.EPSG)
	if err != nil {
		return nil, types.NewSchemaError(path, "meta.epsg", "%v", err)
	}
	if epsg == 0 {
		epsg = defaultEPSG
	}
	if epsg == 0 {
		epsg = types.DefaultEPSG
	}

	id := doc.Meta.ParcelID
	if id == "" {
		id = BaseName(path)
	}

	p := &types.Parcel{
		ID:          id,
		SourceImage: doc.Meta.SourceImage,
		Office:      doc.Meta.Office,
		SurveyType:  doc.Meta.SurveyType,
		Datum:       doc.Meta.Datum,
		EPSG:        epsg,
		ExtractedAt: doc.Meta.ExtractedAt,
		Engine:      doc.Meta.Engine,
	}

	if doc.Marker == nil {
		return nil, types.NewSchemaError(path, "marker", "no marker table found")
	}

	for i, wm := range doc.Marker {
		m, err := convertMarker(wm)
		if err != nil {
			return nil, types.NewSchemaError(path, fmt.Sprintf("marker[%d]", i), "%v", err)
		}
		p.Markers = append(p.Markers, m)
	}
	return p, nil
}

// convertMarker turns a wire record into a typed Marker. Non-numeric
// coordinates flag the record unverified rather than failing; a missing or
// non-string identifier is a structural error.
func convertMarker(wm wireMarker) (types.Marker, error) {
	id, ok := wm.PointID.(string)
	if !ok || id == "" {
		return types.Marker{}, fmt.Errorf("point_id must be a non-empty string, got %v", wm.PointID)
	}

	m := types.Marker{
		PointID: id,
		Label:   coerceString(wm.Label),
		Raw:     wm.Raw,
	}
	switch wm.Flag {
	case "", string(types.FlagOK):
		// verified unless a coordinate fails below
	case string(types.FlagUnverified):
		m.Flag = types.FlagUnverified
	default:
		return types.Marker{}, fmt.Errorf("unknown flag %q for point %s", wm.Flag, id)
	}

	e, eOK := coerceFloat(wm.Easting)
	n, nOK := coerceFloat(wm.Northing)
	m.Easting, m.Northing = e, n
	if !eOK || !nOK {
		m.Flag = types.FlagUnverified
		if m.Raw == "" {
			m.Raw = fmt.Sprintf("easting=%v northing=%v", wm.Easting, wm.Northing)
		}
	}
	return m, nil
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}

// coerceFloat accepts the numeric forms TOML can produce plus numeric
// strings. The bool result reports whether a usable value was found.
func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceEPSG(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		if n <= 0 {
			return 0, fmt.Errorf("EPSG code must be positive, got %d", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i <= 0 {
			return 0, fmt.Errorf("EPSG code must be a positive integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("EPSG code must be an integer, got %T", v)
	}
}

// LoadForEdit loads the parcel for interactive editing: the _OCRedit file
// when one exists (re-editing), otherwise the raw _OCR file. The returned
// path is the file actually read.
func LoadForEdit(dir, base string, defaultEPSG int) (*types.Parcel, string, error) {
	editPath := EditPath(dir, base)
	if _, err := os.Stat(editPath); err == nil {
		p, err := Load(editPath, defaultEPSG)
		return p, editPath, err
	}
	ocrPath := OCRPath(dir, base)
	p, err := Load(ocrPath, defaultEPSG)
	return p, ocrPath, err
}

// DiscoverEdited walks dir recursively and returns all _OCRedit.toml paths,
// sorted. This is the exporter's sole discovery mechanism.
func DiscoverEdited(dir string) ([]string, error) {
	return discover(dir, EditSuffix)
}

// DiscoverTables walks dir recursively and returns all _table.jpg paths,
// sorted. This is the extractor's sole discovery mechanism.
func DiscoverTables(dir string) ([]string, error) {
	return discover(dir, TableSuffix)
}

func discover(dir, suffix string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// DiscoverScans returns the scanned source images in dir (non-recursive):
// jpg/jpeg/png files that are not pipeline artifacts. The interactive
// selector presents these for cropping.
func DiscoverScans(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		if strings.HasSuffix(name, TableSuffix) || strings.HasSuffix(name, PlotSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *types.SchemaError
	return errors.As(err, &se)
}

// IsNotFound reports whether err came from a missing deed file, as opposed
// to an unreadable or malformed one.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
