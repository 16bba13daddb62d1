// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package editor

import (
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyth/cadastre-engine/internal/crop"
	"github.com/surveyth/cadastre-engine/internal/deedfile"
	"github.com/surveyth/cadastre-engine/internal/ocr"
	"github.com/surveyth/cadastre-engine/pkg/types"
)

func writeTestScan(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func cropROI() crop.ROI {
	return crop.ROI{X: 10, Y: 10, Width: 100, Height: 80}
}

// fakeEngine returns canned OCR text without touching the image.
type fakeEngine struct {
	text string
}

func (e fakeEngine) Name() string { return "fake" }

func (e fakeEngine) Recognize(_ context.Context, _ ocr.Input) (ocr.Result, error) {
	return ocr.Result{PlainText: e.text}, nil
}

func testConfig() types.Config {
	cfg := types.Config{
		Meta: types.MetaConfig{DOLOffice: "Narathivas"},
		Deed: types.DeedConfig{SurveyType: "MAP-L1"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// seedSession writes an extraction file with one noisy record and opens a
// session on the matching scan path.
func seedSession(t *testing.T) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	scan := filepath.Join(dir, "ch_100.jpg")
	p := &types.Parcel{
		ID:   "ch_100",
		EPSG: 24047,
		Markers: []types.Marker{
			{PointID: "A", Label: "19", Easting: 810000, Northing: 1500000, Flag: types.FlagOK},
			{PointID: "B", Label: "20", Easting: 810100, Northing: 1500000, Flag: types.FlagOK},
			{PointID: "C", Label: "21", Flag: types.FlagUnverified, Raw: "81o1oo 15ooo8o"},
		},
	}
	require.NoError(t, deedfile.Save(deedfile.OCRPath(dir, "ch_100"), p))

	s, err := Open(scan, testConfig())
	require.NoError(t, err)
	return s, dir
}

func TestOpenLoadsExistingRecords(t *testing.T) {
	s, _ := seedSession(t)
	p := s.Parcel()
	assert.Equal(t, "ch_100", p.ID)
	require.Len(t, p.Markers, 3)
	assert.Equal(t, []string{"C"}, p.UnverifiedIDs())
}

func TestOpenPrefersEditedFile(t *testing.T) {
	s, dir := seedSession(t)
	_ = s

	edited := &types.Parcel{
		ID:   "ch_100",
		EPSG: 24047,
		Markers: []types.Marker{
			{PointID: "A", Easting: 1, Northing: 1, Flag: types.FlagOK},
		},
	}
	require.NoError(t, deedfile.Save(deedfile.EditPath(dir, "ch_100"), edited))

	s2, err := Open(filepath.Join(dir, "ch_100.jpg"), testConfig())
	require.NoError(t, err)
	assert.Len(t, s2.Parcel().Markers, 1)
}

func TestOpenWithoutRecordsStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	scan := filepath.Join(dir, "ch_900.jpg")
	s, err := Open(scan, testConfig())
	require.NoError(t, err)

	p := s.Parcel()
	assert.Equal(t, "ch_900", p.ID)
	assert.Equal(t, "Narathivas", p.Office)
	assert.Equal(t, 24047, p.EPSG)
	assert.Empty(t, p.Markers)
}

func TestUpdateMarkerVerifiesRecord(t *testing.T) {
	s, dir := seedSession(t)

	m, err := s.UpdateMarker(MarkerEdit{
		PointID: "C", Label: "21", Easting: "810100.0", Northing: "1500080.0",
	})
	require.NoError(t, err)
	assert.True(t, m.Verified())
	assert.Empty(t, m.Raw)
	assert.Empty(t, s.Parcel().UnverifiedIDs())

	// Accepted edit replots synchronously.
	assert.FileExists(t, deedfile.PlotPath(dir, "ch_100"))
}

func TestUpdateMarkerAcceptsEdgeCoordinates(t *testing.T) {
	// A point on the equator has northing 0; southern-hemisphere grids
	// without a false northing can go negative. Both are valid inputs.
	tests := []struct {
		name     string
		northing string
		want     float64
	}{
		{"zero northing", "0", 0},
		{"negative northing", "-125.5", -125.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := seedSession(t)
			m, err := s.UpdateMarker(MarkerEdit{
				PointID: "C", Easting: "810100", Northing: tt.northing,
			})
			require.NoError(t, err)
			assert.True(t, m.Verified())
			assert.Equal(t, tt.want, m.Northing)
		})
	}
}

func TestUpdateMarkerRejectsBadInput(t *testing.T) {
	s, _ := seedSession(t)
	tests := []struct {
		name    string
		edit    MarkerEdit
		wantErr string
	}{
		{
			name:    "empty point id",
			edit:    MarkerEdit{PointID: " ", Easting: "1", Northing: "1"},
			wantErr: "point_id",
		},
		{
			name:    "non numeric easting",
			edit:    MarkerEdit{PointID: "C", Easting: "81o1oo", Northing: "1500080"},
			wantErr: "easting",
		},
		{
			name:    "non numeric northing",
			edit:    MarkerEdit{PointID: "C", Easting: "810100", Northing: ""},
			wantErr: "northing",
		},
		{
			name:    "non finite easting",
			edit:    MarkerEdit{PointID: "C", Easting: "NaN", Northing: "1500080"},
			wantErr: "easting",
		},
		{
			name:    "unknown record",
			edit:    MarkerEdit{PointID: "Z", Easting: "810100", Northing: "1500080"},
			wantErr: `"Z"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdateMarker(tt.edit)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	// Rejected edits leave the record untouched.
	p := s.Parcel()
	assert.Equal(t, []string{"C"}, p.UnverifiedIDs())
}

func TestAddAndDeleteMarker(t *testing.T) {
	s, _ := seedSession(t)

	_, err := s.AddMarker(MarkerEdit{PointID: "D", Easting: "810000", Northing: "1500080"})
	require.NoError(t, err)
	assert.Len(t, s.Parcel().Markers, 4)

	_, err = s.AddMarker(MarkerEdit{PointID: "A", Easting: "1", Northing: "1"})
	require.Error(t, err, "duplicate point id rejected")

	require.NoError(t, s.DeleteMarker("C"))
	p := s.Parcel()
	assert.Len(t, p.Markers, 3)
	assert.Empty(t, p.UnverifiedIDs())

	require.Error(t, s.DeleteMarker("C"))
}

func TestSaveRefusesUnverified(t *testing.T) {
	s, dir := seedSession(t)

	_, err := s.Save()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C")
	assert.NoFileExists(t, deedfile.EditPath(dir, "ch_100"))
}

func TestSaveWritesEditedFile(t *testing.T) {
	s, dir := seedSession(t)

	_, err := s.UpdateMarker(MarkerEdit{PointID: "C", Easting: "810100", Northing: "1500080"})
	require.NoError(t, err)

	path, err := s.Save()
	require.NoError(t, err)
	assert.Equal(t, deedfile.EditPath(dir, "ch_100"), path)

	// The raw extraction stays untouched for audit.
	raw, err := deedfile.Load(deedfile.OCRPath(dir, "ch_100"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, raw.UnverifiedIDs())

	saved, err := deedfile.Load(path, 0)
	require.NoError(t, err)
	assert.Empty(t, saved.UnverifiedIDs())
	assert.Len(t, saved.Markers, 3)
}

func TestSaveRefusesEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "ch_900.jpg"), testConfig())
	require.NoError(t, err)

	_, err = s.Save()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no marker records")
}

func TestParcelReturnsCopy(t *testing.T) {
	s, _ := seedSession(t)
	p := s.Parcel()
	p.Markers[0].PointID = "mutated"
	assert.Equal(t, "A", s.Parcel().Markers[0].PointID)
}

func TestExtractWritesAuditRecord(t *testing.T) {
	dir := t.TempDir()
	scan := filepath.Join(dir, "ch_200.jpg")
	s, err := Open(scan, testConfig())
	require.NoError(t, err)

	engine := fakeEngine{text: "s19 711042.723 810313.001\ns20 711050.120 810320.440\ns21 711060.000 810310.000\n"}
	p, err := s.Extract(context.Background(), engine)
	require.NoError(t, err)
	require.Len(t, p.Markers, 3)

	// The raw extraction lands on disk before any edit can happen.
	audit, err := deedfile.Load(deedfile.OCRPath(dir, "ch_200"), 0)
	require.NoError(t, err)
	assert.Equal(t, "fake", audit.Engine)
	assert.Len(t, audit.Markers, 3)

	// Editing and saving leaves the audit copy untouched.
	_, err = s.UpdateMarker(MarkerEdit{PointID: "A", Easting: "711999", Northing: "810999"})
	require.NoError(t, err)
	_, err = s.Save()
	require.NoError(t, err)

	audit, err = deedfile.Load(deedfile.OCRPath(dir, "ch_200"), 0)
	require.NoError(t, err)
	assert.Equal(t, 711042.723, audit.Markers[0].Northing)
	assert.Equal(t, 810313.001, audit.Markers[0].Easting)
}

func TestCropTableWritesCrop(t *testing.T) {
	// A real image is needed for the crop path; reuse the session folder.
	s, dir := seedSession(t)
	writeTestScan(t, filepath.Join(dir, "ch_100.jpg"))

	path, err := s.CropTable(cropROI())
	require.NoError(t, err)
	assert.Equal(t, deedfile.TablePath(dir, "ch_100"), path)
	assert.FileExists(t, path)
}
