// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package geodesy builds coordinate transformations for the survey datums
// that appear on Thai land deeds. Indian 1975 UTM zones (EPSG 24047/24048)
// are constructed from an explicit proj pipeline so the office-specific
// towgs84 shift from CONFIG.toml can be applied; every other code is handed
// to PROJ by its EPSG name.
package geodesy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/twpayne/go-proj/v10"
)

// Everest 1830 ellipsoid parameters used by the Indian 1975 datum.
const (
	everestA  = 6377276.345
	everestRF = 300.8017
)

const epsgWGS84 = 4326

// Transformer converts easting/northing pairs from a source CRS into a
// target CRS. Implementations must be safe for use from a single goroutine;
// the exporter processes parcels sequentially.
type Transformer interface {
	Transform(easting, northing float64) (x, y float64, err error)
}

// Factory caches PROJ transformations keyed by source EPSG and target.
type Factory struct {
	// TOWGS84 is the office-specific 3- or 7-parameter datum shift applied
	// to Indian 1975 sources. Empty means PROJ's default shift.
	TOWGS84 []float64

	mu    sync.Mutex
	cache map[string]*projTransformer
}

// NewFactory returns a Factory applying the given towgs84 parameters to
// Indian 1975 sources.
func NewFactory(towgs84 []float64) *Factory {
	return &Factory{TOWGS84: towgs84, cache: make(map[string]*projTransformer)}
}

// ToWGS84 returns a transformer from srcEPSG to geographic WGS84
// (longitude, latitude order).
func (f *Factory) ToWGS84(srcEPSG int) (Transformer, error) {
	return f.transformer(srcEPSG, epsgWGS84, true)
}

// ToWGS84UTM returns a transformer from srcEPSG to the WGS84 UTM zone
// covering the same ground, for offices that deliver projected output.
func (f *Factory) ToWGS84UTM(srcEPSG int) (Transformer, error) {
	dst, err := WGS84UTM(srcEPSG)
	if err != nil {
		return nil, err
	}
	return f.transformer(srcEPSG, dst, false)
}

// WGS84UTM maps a source code to its WGS84 UTM counterpart. Sources already
// on WGS84 UTM map to themselves.
func WGS84UTM(srcEPSG int) (int, error) {
	switch srcEPSG {
	case 24047:
		return 32647, nil
	case 24048:
		return 32648, nil
	case 32647, 32648:
		return srcEPSG, nil
	default:
		return 0, fmt.Errorf("no WGS84 UTM counterpart for EPSG:%d", srcEPSG)
	}
}

func (f *Factory) transformer(srcEPSG, dstEPSG int, geographic bool) (*projTransformer, error) {
	key := fmt.Sprintf("%d->%d", srcEPSG, dstEPSG)

	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.cache[key]; ok {
		return t, nil
	}

	src := SourceCRS(srcEPSG, f.TOWGS84)
	pj, err := proj.NewCRSToCRS(src, fmt.Sprintf("EPSG:%d", dstEPSG), nil)
	if err != nil {
		return nil, fmt.Errorf("creating transformation EPSG:%d to EPSG:%d: %w", srcEPSG, dstEPSG, err)
	}
	if geographic {
		// Geographic output in longitude/latitude order so exported
		// geometries read as x=lon, y=lat.
		pj, err = pj.NormalizeForVisualization()
		if err != nil {
			return nil, fmt.Errorf("normalizing axis order: %w", err)
		}
	}

	t := &projTransformer{pj: pj}
	f.cache[key] = t
	return t, nil
}

// SourceCRS returns the PROJ definition of a deed's source CRS. Indian 1975
// zones get an explicit pipeline carrying the Everest 1830 ellipsoid and
// the configured datum shift.
func SourceCRS(epsg int, towgs84 []float64) string {
	var zone int
	switch epsg {
	case 24047:
		zone = 47
	case 24048:
		zone = 48
	default:
		return fmt.Sprintf("EPSG:%d", epsg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "+proj=utm +zone=%d +a=%.3f +rf=%.4f", zone, everestA, everestRF)
	if len(towgs84) > 0 {
		parts := make([]string, len(towgs84))
		for i, v := range towgs84 {
			parts[i] = trimFloat(v)
		}
		fmt.Fprintf(&b, " +towgs84=%s", strings.Join(parts, ","))
	}
	b.WriteString(" +units=m +no_defs +type=crs")
	return b.String()
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

type projTransformer struct {
	pj *proj.PJ
}

func (t *projTransformer) Transform(easting, northing float64) (float64, float64, error) {
	coord, err := t.pj.Forward(proj.NewCoord(easting, northing, 0, 0))
	if err != nil {
		return 0, 0, fmt.Errorf("transforming (%f, %f): %w", easting, northing, err)
	}
	return coord.X(), coord.Y(), nil
}
