// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// MarkerFlag indicates whether a coordinate record has been verified.
// Records the OCR stage could not parse cleanly are flagged unverified and
// must be corrected in the editor before export.
type MarkerFlag string

const (
	FlagOK         MarkerFlag = "ok"
	FlagUnverified MarkerFlag = "unverified"
)

// Marker is one boundary coordinate record: a survey marker with its
// identifier and position in the source projected datum.
type Marker struct {
	// PointID is the sequence identifier within the parcel ring ("A", "B", ...).
	PointID string `toml:"point_id" json:"point_id"`

	// Label is the marker designation as printed on the deed (e.g. "s41").
	Label string `toml:"label,omitempty" json:"label,omitempty"`

	// Easting is the X coordinate in the source datum, meters.
	Easting float64 `toml:"easting" json:"easting"`

	// Northing is the Y coordinate in the source datum, meters.
	Northing float64 `toml:"northing" json:"northing"`

	// Flag marks records that still need human verification. An empty
	// flag is equivalent to FlagOK and is omitted on disk.
	Flag MarkerFlag `toml:"flag,omitempty" json:"flag,omitempty"`

	// Raw preserves the uncleaned OCR text for unverified records so the
	// editor can show what the engine actually read.
	Raw string `toml:"raw,omitempty" json:"raw,omitempty"`
}

// Verified reports whether the marker carries usable coordinates.
func (m Marker) Verified() bool {
	return m.Flag == "" || m.Flag == FlagOK
}

// Validate checks the fields required before a marker may be saved:
// a non-empty point identifier and finite coordinates.
func (m Marker) Validate() error {
	if m.PointID == "" {
		return fmt.Errorf("marker has empty point_id")
	}
	if !m.Verified() {
		return fmt.Errorf("marker %s is unverified (raw OCR text: %q)", m.PointID, m.Raw)
	}
	if m.Easting == 0 && m.Northing == 0 {
		return fmt.Errorf("marker %s has zero coordinates", m.PointID)
	}
	return nil
}

// Parcel is one land unit: provenance metadata plus the ordered ring of
// boundary markers. Marker order is boundary traversal order and defines the
// polygon winding; it is preserved through every pipeline stage.
type Parcel struct {
	// ID is the parcel identifier, derived from the scan basename ("p08").
	ID string `toml:"parcel_id" json:"parcel_id"`

	// SourceImage names the cropped table image the records were read from.
	SourceImage string `toml:"source_image,omitempty" json:"source_image,omitempty"`

	// Office is the issuing land office.
	Office string `toml:"office,omitempty" json:"office,omitempty"`

	// SurveyType is the survey method recorded on the deed.
	SurveyType string `toml:"survey_type,omitempty" json:"survey_type,omitempty"`

	// Datum is the human-readable name of the source projected datum.
	Datum string `toml:"datum,omitempty" json:"datum,omitempty"`

	// EPSG is the source datum code (e.g. 24047 for Indian 1975 / UTM 47N).
	EPSG int `toml:"epsg" json:"epsg"`

	// ExtractedAt records when the OCR stage produced this file.
	ExtractedAt time.Time `toml:"extracted_at,omitempty" json:"extracted_at,omitzero"`

	// Engine names the OCR engine that produced the records.
	Engine string `toml:"engine,omitempty" json:"engine,omitempty"`

	Markers []Marker `toml:"-" json:"markers"`
}

// VerifiedMarkers returns the markers safe to export, in ring order.
func (p *Parcel) VerifiedMarkers() []Marker {
	out := make([]Marker, 0, len(p.Markers))
	for _, m := range p.Markers {
		if m.Verified() {
			out = append(out, m)
		}
	}
	return out
}

// UnverifiedIDs returns the point identifiers of markers still flagged
// unverified, in ring order.
func (p *Parcel) UnverifiedIDs() []string {
	var ids []string
	for _, m := range p.Markers {
		if !m.Verified() {
			ids = append(ids, m.PointID)
		}
	}
	return ids
}

// Ring returns the verified coordinates as a closed ring: if the first and
// last points differ, the first is appended to close the polygon.
func (p *Parcel) Ring() [][2]float64 {
	ms := p.VerifiedMarkers()
	ring := make([][2]float64, 0, len(ms)+1)
	for _, m := range ms {
		ring = append(ring, [2]float64{m.Easting, m.Northing})
	}
	if len(ring) > 1 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}
