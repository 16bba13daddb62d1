// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyth/cadastre-engine/pkg/types"
)

func TestCleanNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"711042.723", "711042.723"},
		{"7I1042.723", "711042.723"}, // I -> 1
		{"71lO42.723", "711042.723"}, // l -> 1, O -> 0
		{"810313.0O1", "810313.001"}, // O -> 0
		{"8103$3.001", "810353.001"}, // $ -> 5
		{"71.10.42", "71.1042"},      // keep first dot
		{"  711,042.723 ", "711042.723"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanNumeric(tt.in), "CleanNumeric(%q)", tt.in)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantStatus   lineStatus
		wantLabel    string
		wantEasting  float64
		wantNorthing float64
	}{
		{
			name:         "whole coordinates",
			line:         "s41 711042.723 810293.807",
			wantStatus:   lineOK,
			wantLabel:    "s41",
			wantNorthing: 711042.723,
			wantEasting:  810293.807,
		},
		{
			name:         "meter fraction pairs",
			line:         "s24 711494 218 810313 001",
			wantStatus:   lineOK,
			wantLabel:    "s24",
			wantNorthing: 711494.218,
			wantEasting:  810313.001,
		},
		{
			name:         "digit confusions in coordinates",
			line:         "520 7I1275.096 81O520.089",
			wantStatus:   lineOK,
			wantLabel:    "520",
			wantNorthing: 711275.096,
			wantEasting:  810520.089,
		},
		{
			name:       "implausible easting flagged",
			line:       "s22 711328.714 10.5",
			wantStatus: lineUnverified,
			wantLabel:  "s22",
		},
		{
			name:       "single numeric cell flagged",
			line:       "s23 711488.109",
			wantStatus: lineUnverified,
			wantLabel:  "s23",
		},
		{
			name:       "header row dropped",
			line:       "MARKER NORTHING EASTING",
			wantStatus: lineDropped,
		},
		{
			name:       "empty line dropped",
			line:       "   ",
			wantStatus: lineDropped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, status := parseLine(tt.line)
			require.Equal(t, tt.wantStatus, status)
			if status == lineDropped {
				return
			}
			assert.Equal(t, tt.wantLabel, m.Label)
			if status == lineUnverified {
				assert.Equal(t, types.FlagUnverified, m.Flag)
				assert.Equal(t, tt.line, m.Raw, "unverified records keep the raw line")
				return
			}
			assert.InDelta(t, tt.wantEasting, m.Easting, 1e-9)
			assert.InDelta(t, tt.wantNorthing, m.Northing, 1e-9)
		})
	}
}

func TestParseResult(t *testing.T) {
	res := Result{Lines: []Line{
		{Text: "MARKER NORTHING EASTING"},
		{Text: "s41 711042.723 810293.807"},
		{Text: "520 711275.096 810520.089"},
		{Text: "s21 garbage row"},
		{Text: "19 711354.507 810440.839"},
	}}

	out := ParseResult(res)

	require.Len(t, out.Markers, 4, "noisy rows are kept flagged, headers dropped")
	assert.Equal(t, 1, out.Dropped)
	assert.Equal(t, 1, out.Unverified)

	// Ring identifiers follow row order.
	assert.Equal(t, "A", out.Markers[0].PointID)
	assert.Equal(t, "B", out.Markers[1].PointID)
	assert.Equal(t, "C", out.Markers[2].PointID)
	assert.Equal(t, "D", out.Markers[3].PointID)

	assert.True(t, out.Markers[0].Verified())
	assert.False(t, out.Markers[2].Verified())
	assert.Equal(t, "s21 garbage row", out.Markers[2].Raw)
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "A", pointID(1))
	assert.Equal(t, "Z", pointID(26))
	assert.Equal(t, "P27", pointID(27))
}
