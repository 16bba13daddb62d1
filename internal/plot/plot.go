// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plot renders a parcel's boundary ring to a PNG. The plot is a
// derived artifact: regenerated after every accepted edit, never read back
// by any stage. A parcel that cannot form a polygon renders a placeholder
// stating the reason instead of failing, so the editor session survives
// partial data.
package plot

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"

	"github.com/surveyth/cadastre-engine/pkg/types"
)

const (
	width   = 640
	height  = 640
	margin  = 60.0
	dotSize = 4.0
)

// Render draws the parcel boundary to path. Markers flagged unverified are
// excluded; with fewer than 3 plottable points a placeholder is written.
func Render(p *types.Parcel, path string) error {
	ms := p.VerifiedMarkers()
	if len(ms) < 3 {
		return renderPlaceholder(p, len(ms), path)
	}

	minE, maxE := ms[0].Easting, ms[0].Easting
	minN, maxN := ms[0].Northing, ms[0].Northing
	for _, m := range ms[1:] {
		minE = math.Min(minE, m.Easting)
		maxE = math.Max(maxE, m.Easting)
		minN = math.Min(minN, m.Northing)
		maxN = math.Max(maxN, m.Northing)
	}

	// Equal-aspect scale so the polygon is not distorted; guard against a
	// zero extent when all points are collinear on one axis.
	extE := maxE - minE
	extN := maxN - minN
	ext := math.Max(math.Max(extE, extN), 1e-9)
	scale := (width - 2*margin) / ext

	// Center the drawing; flip Y so north is up.
	offX := (width - extE*scale) / 2
	offY := (height - extN*scale) / 2
	toCanvas := func(e, n float64) (float64, float64) {
		return offX + (e-minE)*scale, height - (offY + (n-minN)*scale)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Boundary polygon.
	dc.SetRGB(0.1, 0.3, 0.7)
	dc.SetLineWidth(2)
	for i, m := range ms {
		x, y := toCanvas(m.Easting, m.Northing)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
	dc.StrokePreserve()
	dc.SetRGBA(0.1, 0.3, 0.7, 0.08)
	dc.Fill()

	// Vertices and their identifiers.
	for _, m := range ms {
		x, y := toCanvas(m.Easting, m.Northing)
		dc.SetRGB(0.8, 0.1, 0.1)
		dc.DrawCircle(x, y, dotSize)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		label := m.PointID
		if m.Label != "" {
			label = fmt.Sprintf("%s (%s)", m.PointID, m.Label)
		}
		dc.DrawStringAnchored(label, x+dotSize+2, y-dotSize-2, 0, 0.5)
	}

	dc.SetRGB(0.2, 0.2, 0.2)
	dc.DrawStringAnchored(caption(p, len(ms)), width/2, height-margin/2, 0.5, 0.5)

	return dc.SavePNG(path)
}

// renderPlaceholder writes an image explaining why no polygon was drawn.
func renderPlaceholder(p *types.Parcel, points int, path string) error {
	dc := gg.NewContext(width, height)
	dc.SetRGB(0.96, 0.96, 0.96)
	dc.Clear()

	dc.SetRGB(0.6, 0.6, 0.6)
	dc.SetLineWidth(1)
	dc.DrawRectangle(margin, margin, width-2*margin, height-2*margin)
	dc.Stroke()

	dc.SetRGB(0.3, 0.3, 0.3)
	dc.DrawStringAnchored(
		fmt.Sprintf("cannot plot %s: %d verified points (need 3)", p.ID, points),
		width/2, height/2, 0.5, 0.5,
	)
	if n := len(p.UnverifiedIDs()); n > 0 {
		dc.DrawStringAnchored(
			fmt.Sprintf("%d unverified records pending correction", n),
			width/2, height/2+20, 0.5, 0.5,
		)
	}
	return dc.SavePNG(path)
}

func caption(p *types.Parcel, points int) string {
	return fmt.Sprintf("%s: %d boundary points (EPSG:%d)", p.ID, points, p.EPSG)
}
