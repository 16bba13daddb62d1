// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package geodesy

import "fmt"

// DatumName returns the human-readable name for the codes that appear on
// deed scans and in export targets.
func DatumName(epsg int) string {
	switch epsg {
	case 4326:
		return "WGS 84"
	case 24047:
		return "Indian 1975 / UTM zone 47N"
	case 24048:
		return "Indian 1975 / UTM zone 48N"
	case 32647:
		return "WGS 84 / UTM zone 47N"
	case 32648:
		return "WGS 84 / UTM zone 48N"
	default:
		return fmt.Sprintf("EPSG:%d", epsg)
	}
}

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

// Definition returns the SRS definition text recorded in exported files.
// WGS84 targets carry their standard WKT; Indian 1975 sources carry the
// same proj pipeline the transformation uses, shift included, so a file in
// the source CRS is self-describing.
func Definition(epsg int, towgs84 []float64) string {
	switch epsg {
	case 4326:
		return wgs84WKT
	case 32647, 32648:
		zone := epsg - 32600
		return fmt.Sprintf(
			`PROJCS["WGS 84 / UTM zone %dN",%s,PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",%d],PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AUTHORITY["EPSG","%d"]]`,
			zone, wgs84WKT, zone*6-183, epsg,
		)
	default:
		return SourceCRS(epsg, towgs84)
	}
}
