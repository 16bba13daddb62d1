// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"strconv"
	"strings"

	"github.com/surveyth/cadastre-engine/pkg/types"
)

// Cleaning rules for raw table text, applied in order to coordinate fields:
//
//  1. Digit confusions common in survey-table OCR: O,o -> 0; I,i,l,L -> 1;
//     S,$ -> 5; B -> 8. Marker labels are left untouched; the rules apply
//     only to tokens expected to be numeric.
//  2. Every rune other than digits and '.' is stripped.
//  3. If more than one '.' survives, the first is kept and the rest dropped.
//  4. A row whose coordinate cells come as meter/fraction pairs
//     ("711042 | 723 | 810313 | 001") recombines as meters + fraction/1000.
//  5. A row becomes a verified record only when it yields one northing and
//     one easting inside plausible UTM ranges; otherwise the row is kept as
//     an unverified record carrying its raw text, or dropped entirely when
//     it contains no digits at all (column headers, rulings, smudges).
//
// Row order is preserved: it is the boundary traversal order.

// Plausible coordinate ranges for a projected UTM datum, meters.
const (
	minEasting  = 100_000
	maxEasting  = 900_000
	minNorthing = 0
	maxNorthing = 10_000_000
)

// maxFraction is the exclusive upper bound for a millimeter fraction cell.
const maxFraction = 1000

var digitConfusions = strings.NewReplacer(
	"O", "0", "o", "0",
	"I", "1", "i", "1", "l", "1", "L", "1",
	"S", "5", "$", "5",
	"B", "8",
)

// CleanNumeric applies rules 1-3 to a token expected to hold a number.
func CleanNumeric(s string) string {
	s = digitConfusions.Replace(s)

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if strings.Count(cleaned, ".") > 1 {
		first := strings.Index(cleaned, ".")
		cleaned = cleaned[:first+1] + strings.ReplaceAll(cleaned[first+1:], ".", "")
	}
	return cleaned
}

// parseNumeric cleans a token and parses it as a float. ok is false for
// tokens with no usable digits, and for tokens that are mostly letters:
// words like "EASTING" survive the confusion mapping with a digit or two,
// so a cell counts as numeric only when at least half of it does.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	cleaned := CleanNumeric(s)
	if cleaned == "" || cleaned == "." {
		return 0, false
	}
	if len([]rune(cleaned))*2 < len([]rune(s)) {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseOutput holds the cleaned records and the per-run accounting the
// extractor reports.
type ParseOutput struct {
	Markers []types.Marker
	// Unverified counts records kept but flagged for human correction.
	Unverified int
	// Dropped counts lines with no numeric content at all.
	Dropped int
}

// ParseResult applies the cleaning rules to every recognized line and
// assigns ring point identifiers in row order.
func ParseResult(res Result) ParseOutput {
	var out ParseOutput
	for _, line := range res.Lines {
		m, status := parseLine(line.Text)
		switch status {
		case lineDropped:
			out.Dropped++
			continue
		case lineUnverified:
			out.Unverified++
		}
		m.PointID = pointID(len(out.Markers) + 1)
		out.Markers = append(out.Markers, m)
	}
	return out
}

type lineStatus int

const (
	lineOK lineStatus = iota
	lineUnverified
	lineDropped
)

// parseLine turns one table row into a marker. The first cell is always the
// deed marker code (labels may themselves look numeric, e.g. "19" or "520",
// so position decides, not content); the remaining cells are coordinate
// candidates read right to left since trailing columns hold the coordinates.
func parseLine(text string) (types.Marker, lineStatus) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return types.Marker{}, lineDropped
	}

	label := strings.TrimSpace(fields[0])
	var nums []float64
	for _, f := range fields[1:] {
		if v, ok := parseNumeric(f); ok {
			nums = append(nums, v)
		}
	}

	if len(nums) == 0 {
		if _, ok := parseNumeric(label); !ok {
			// No digits anywhere on the row: header or smudge.
			return types.Marker{}, lineDropped
		}
		return types.Marker{Label: label, Flag: types.FlagUnverified, Raw: text}, lineUnverified
	}

	northing, easting, ok := coordinatesFrom(nums)
	if !ok || !plausible(easting, northing) {
		return types.Marker{
			Label: label,
			Flag:  types.FlagUnverified,
			Raw:   text,
		}, lineUnverified
	}

	return types.Marker{Label: label, Easting: easting, Northing: northing}, lineOK
}

// coordinatesFrom interprets the numeric cells of a row. Deed tables print
// either whole coordinates (northing, easting as the last two cells) or
// meter/fraction pairs (last four cells: Nm, Nf, Em, Ef with the fraction in
// thousandths).
func coordinatesFrom(nums []float64) (northing, easting float64, ok bool) {
	n := len(nums)
	switch {
	case n >= 4 && isFraction(nums[n-3]) && isFraction(nums[n-1]) &&
		isMeters(nums[n-4]) && isMeters(nums[n-2]):
		nm, nf := nums[n-4], nums[n-3]
		em, ef := nums[n-2], nums[n-1]
		return nm + nf/maxFraction, em + ef/maxFraction, true
	case n >= 2:
		return nums[n-2], nums[n-1], true
	default:
		return 0, 0, false
	}
}

// isFraction reports whether v looks like a thousandths cell.
func isFraction(v float64) bool {
	return v >= 0 && v < maxFraction && v == float64(int64(v))
}

// isMeters reports whether v looks like a whole-meter coordinate cell.
func isMeters(v float64) bool {
	return v >= 10_000 && v == float64(int64(v))
}

func plausible(easting, northing float64) bool {
	return easting > minEasting && easting < maxEasting &&
		northing > minNorthing && northing < maxNorthing
}

// pointID labels ring points "A".."Z", then "P27", "P28", ...
func pointID(seq int) string {
	if seq >= 1 && seq <= 26 {
		return string(rune('A' + seq - 1))
	}
	return "P" + strconv.Itoa(seq)
}
