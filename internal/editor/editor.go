// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package editor holds the state of one verification session: the scan
// being worked on, the cropped table region, and the marker records under
// correction. All mutation goes through the session so every accepted edit
// leaves the deed files and the boundary plot consistent on disk.
package editor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/surveyth/cadastre-engine/internal/crop"
	"github.com/surveyth/cadastre-engine/internal/deedfile"
	"github.com/surveyth/cadastre-engine/internal/extract"
	"github.com/surveyth/cadastre-engine/internal/ocr"
	"github.com/surveyth/cadastre-engine/internal/plot"
	"github.com/surveyth/cadastre-engine/pkg/types"
)

// Session is one scan open for verification. Methods are safe for
// concurrent use; the web server calls them from request handlers.
type Session struct {
	mu sync.Mutex

	dir    string
	base   string
	scan   string
	roi    *crop.ROI
	parcel *types.Parcel
	// loadedFrom is the file the records came from, empty when the table
	// has not been extracted yet.
	loadedFrom string
	cfg        types.Config
}

// Open starts a session on a scan image. Existing records are loaded from
// _OCRedit.toml when present, falling back to _OCR.toml; a scan with
// neither starts empty.
func Open(scanPath string, cfg types.Config) (*Session, error) {
	dir, base := deedfile.Split(scanPath)
	s := &Session{
		dir:  dir,
		base: base,
		scan: scanPath,
		cfg:  cfg,
	}

	p, from, err := deedfile.LoadForEdit(dir, base, cfg.Deed.EPSG)
	switch {
	case err == nil:
		s.parcel = p
		s.loadedFrom = from
	case deedfile.IsNotFound(err):
		s.parcel = &types.Parcel{
			ID:          base,
			SourceImage: scanPath,
			Office:      cfg.Meta.DOLOffice,
			SurveyType:  cfg.Deed.SurveyType,
			EPSG:        cfg.Deed.EPSG,
		}
	default:
		return nil, fmt.Errorf("loading records for %s: %w", base, err)
	}
	return s, nil
}

// Base returns the deed base name of the open scan.
func (s *Session) Base() string {
	return s.base
}

// Scan returns the path of the open scan image.
func (s *Session) Scan() string {
	return s.scan
}

// Parcel returns a copy of the current records.
func (s *Session) Parcel() types.Parcel {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.parcel
	p.Markers = append([]types.Marker(nil), s.parcel.Markers...)
	return p
}

// CropTable stores the region of interest and writes the table crop next to
// the scan.
func (s *Session) CropTable(roi crop.ROI) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := crop.WriteTable(s.scan, roi)
	if err != nil {
		return "", err
	}
	s.roi = &roi
	return path, nil
}

// Extract runs OCR over the cropped table and replaces the session's
// records with the engine's output. The crop must exist first.
func (s *Session) Extract(ctx context.Context, engine ocr.Engine) (*types.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tablePath := deedfile.TablePath(s.dir, s.base)
	p, err := extract.ExtractTable(ctx, engine, tablePath, s.cfg)
	if err != nil {
		return nil, err
	}
	p.SourceImage = s.scan

	// The raw engine output is the audit record; edits only ever go to the
	// _OCRedit file.
	ocrPath := deedfile.OCRPath(s.dir, s.base)
	if err := deedfile.Save(ocrPath, p); err != nil {
		return nil, fmt.Errorf("writing extraction record: %w", err)
	}

	s.parcel = p
	s.loadedFrom = ocrPath

	if err := s.replotLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkerEdit is one proposed change to a marker record. Coordinates arrive
// as text because the editor shows the raw OCR string for unverified rows.
type MarkerEdit struct {
	PointID  string
	Label    string
	Easting  string
	Northing string
}

// UpdateMarker validates an edit and applies it to the named record. A
// rejected edit names the offending field and leaves the record untouched;
// an accepted edit marks the record verified and replots the boundary.
func (s *Session) UpdateMarker(edit MarkerEdit) (types.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(edit.PointID) == "" {
		return types.Marker{}, fmt.Errorf("invalid point_id: must not be empty")
	}
	easting, err := parseCoordinate("easting", edit.Easting)
	if err != nil {
		return types.Marker{}, err
	}
	northing, err := parseCoordinate("northing", edit.Northing)
	if err != nil {
		return types.Marker{}, err
	}

	idx := s.markerIndex(edit.PointID)
	if idx < 0 {
		return types.Marker{}, fmt.Errorf("no marker with point_id %q", edit.PointID)
	}

	m := &s.parcel.Markers[idx]
	m.Label = strings.TrimSpace(edit.Label)
	m.Easting = easting
	m.Northing = northing
	m.Flag = types.FlagOK
	m.Raw = ""

	if err := s.replotLocked(); err != nil {
		return types.Marker{}, err
	}
	return *m, nil
}

// AddMarker appends a new verified record at the end of the traversal
// order.
func (s *Session) AddMarker(edit MarkerEdit) (types.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(edit.PointID) == "" {
		return types.Marker{}, fmt.Errorf("invalid point_id: must not be empty")
	}
	if s.markerIndex(edit.PointID) >= 0 {
		return types.Marker{}, fmt.Errorf("marker %q already exists", edit.PointID)
	}
	easting, err := parseCoordinate("easting", edit.Easting)
	if err != nil {
		return types.Marker{}, err
	}
	northing, err := parseCoordinate("northing", edit.Northing)
	if err != nil {
		return types.Marker{}, err
	}

	m := types.Marker{
		PointID:  strings.TrimSpace(edit.PointID),
		Label:    strings.TrimSpace(edit.Label),
		Easting:  easting,
		Northing: northing,
		Flag:     types.FlagOK,
	}
	s.parcel.Markers = append(s.parcel.Markers, m)

	if err := s.replotLocked(); err != nil {
		return types.Marker{}, err
	}
	return m, nil
}

// DeleteMarker removes a record, for table rows that were OCR artifacts
// rather than boundary points.
func (s *Session) DeleteMarker(pointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.markerIndex(pointID)
	if idx < 0 {
		return fmt.Errorf("no marker with point_id %q", pointID)
	}
	s.parcel.Markers = append(s.parcel.Markers[:idx], s.parcel.Markers[idx+1:]...)
	return s.replotLocked()
}

// Save writes the verified records to _OCRedit.toml. It refuses to save
// while unverified records remain, naming them, so a partially corrected
// table can never masquerade as reviewed.
func (s *Session) Save() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids := s.parcel.UnverifiedIDs(); len(ids) > 0 {
		return "", fmt.Errorf("cannot save: unverified records remain: %s", strings.Join(ids, ", "))
	}
	if len(s.parcel.Markers) == 0 {
		return "", fmt.Errorf("cannot save: no marker records")
	}

	path := deedfile.EditPath(s.dir, s.base)
	if err := deedfile.Save(path, s.parcel); err != nil {
		return "", err
	}
	s.loadedFrom = path
	return path, nil
}

// PlotPath returns where the boundary plot for this session is written.
func (s *Session) PlotPath() string {
	return deedfile.PlotPath(s.dir, s.base)
}

// Replot redraws the boundary plot from the current records.
func (s *Session) Replot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replotLocked()
}

func (s *Session) replotLocked() error {
	if err := plot.Render(s.parcel, deedfile.PlotPath(s.dir, s.base)); err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}
	return nil
}

func (s *Session) markerIndex(pointID string) int {
	for i, m := range s.parcel.Markers {
		if m.PointID == pointID {
			return i
		}
	}
	return -1
}

func parseCoordinate(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: %q is not a number", field, value)
	}
	return v, nil
}
