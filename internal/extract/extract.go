// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract implements the batch OCR stage: every _table.jpg under a
// folder is recognized, cleaned into marker records, and written next to its
// source as _OCR.toml. A table whose text cannot be fully parsed still
// produces a file with the noisy records flagged unverified; only I/O and
// engine failures count as failed.
package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/surveyth/cadastre-engine/internal/deedfile"
	"github.com/surveyth/cadastre-engine/internal/geodesy"
	"github.com/surveyth/cadastre-engine/internal/ocr"
	"github.com/surveyth/cadastre-engine/pkg/types"
)

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Extracted int
	Skipped   int
	Failed    int
}

// Total returns the number of tables processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Skipped + s.Failed
}

// HasFailures reports whether any tables failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Options control a batch run.
type Options struct {
	// Range restricts processing to a 1-based inclusive slice of the
	// discovered table list ("4,6" or a single "4"). Empty processes all.
	Range string
	// Force re-extracts tables whose _OCR.toml already exists.
	Force bool
}

// ExtractTable runs OCR over one table image and builds its parcel record.
func ExtractTable(ctx context.Context, engine ocr.Engine, tablePath string, cfg types.Config) (*types.Parcel, error) {
	res, err := engine.Recognize(ctx, ocr.Input{Path: tablePath, Language: cfg.Extract.Language})
	if err != nil {
		return nil, fmt.Errorf("OCR: %w", err)
	}

	out := ocr.ParseResult(res)

	base := deedfile.BaseName(tablePath)
	return &types.Parcel{
		ID:          base,
		SourceImage: base + deedfile.TableSuffix,
		Office:      cfg.Meta.DOLOffice,
		SurveyType:  cfg.Deed.SurveyType,
		Datum:       geodesy.DatumName(cfg.Deed.EPSG),
		EPSG:        cfg.Deed.EPSG,
		ExtractedAt: time.Now().UTC().Truncate(time.Second),
		Engine:      engine.Name(),
		Markers:     out.Markers,
	}, nil
}

// ExtractBatch discovers tables under dir, filters by opts.Range, and
// processes each through the engine, printing per-file status to w and
// returning a summary. A single failed table never aborts the batch.
func ExtractBatch(ctx context.Context, engine ocr.Engine, dir string, cfg types.Config, opts Options, w io.Writer) (BatchSummary, error) {
	tables, err := deedfile.DiscoverTables(dir)
	if err != nil {
		return BatchSummary{}, err
	}
	if len(tables) == 0 {
		return BatchSummary{}, fmt.Errorf("no %s files found under %s", deedfile.TableSuffix, dir)
	}

	selected, err := filterRange(tables, opts.Range)
	if err != nil {
		return BatchSummary{}, err
	}
	if len(selected) == 0 {
		fmt.Fprintf(w, "range %q selects none of the %d tables, processing nothing\n", opts.Range, len(tables))
		return BatchSummary{}, nil
	}
	fmt.Fprintf(w, "processing %d of %d tables\n", len(selected), len(tables))

	var summary BatchSummary
	for _, tablePath := range selected {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		base := deedfile.BaseName(tablePath)
		outPath := deedfile.OCRPath(filepath.Dir(tablePath), base)

		if !opts.Force {
			if _, err := os.Stat(outPath); err == nil {
				fmt.Fprintf(w, "skipped:   %s (already extracted)\n", base)
				summary.Skipped++
				continue
			}
		}

		p, err := ExtractTable(ctx, engine, tablePath, cfg)
		if err != nil {
			fmt.Fprintf(w, "failed:    %s (%v)\n", base, err)
			summary.Failed++
			continue
		}
		if len(p.Markers) == 0 {
			fmt.Fprintf(w, "failed:    %s (no marker rows recognized)\n", base)
			summary.Failed++
			continue
		}

		if err := deedfile.Save(outPath, p); err != nil {
			fmt.Fprintf(w, "failed:    %s (%v)\n", base, err)
			summary.Failed++
			continue
		}

		unverified := len(p.UnverifiedIDs())
		if unverified > 0 {
			fmt.Fprintf(w, "extracted: %s (%d markers, %d unverified)\n", base, len(p.Markers), unverified)
		} else {
			fmt.Fprintf(w, "extracted: %s (%d markers)\n", base, len(p.Markers))
		}
		summary.Extracted++
	}

	fmt.Fprintf(w, "\nBatch summary: %d extracted, %d skipped, %d failed (total: %d)\n",
		summary.Extracted, summary.Skipped, summary.Failed, summary.Total())
	return summary, nil
}

// ListTables prints the discovered tables with their 1-based indices, the
// numbers the --range flag selects by.
func ListTables(dir string, w io.Writer) error {
	tables, err := deedfile.DiscoverTables(dir)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Fprintf(w, "no %s files found under %s\n", deedfile.TableSuffix, dir)
		return nil
	}
	fmt.Fprintf(w, "found %d tables under %s\n", len(tables), dir)
	for i, path := range tables {
		fmt.Fprintf(w, "[%d] %s\n", i+1, path)
	}
	return nil
}

// filterRange applies the 1-based inclusive "start,end" selection. Bounds
// are clamped to the list; "4" alone selects just the fourth table.
func filterRange(tables []string, rangeStr string) ([]string, error) {
	if rangeStr == "" {
		return tables, nil
	}

	start, end := 0, 0
	parts := strings.Split(rangeStr, ",")
	switch len(parts) {
	case 1:
		v, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: expected START,END or a single index", rangeStr)
		}
		start, end = v, v
	case 2:
		a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errA != nil || errB != nil {
			return nil, fmt.Errorf("invalid range %q: expected START,END or a single index", rangeStr)
		}
		start, end = a, b
	default:
		return nil, fmt.Errorf("invalid range %q: expected START,END or a single index", rangeStr)
	}

	if start < 1 {
		start = 1
	}
	if end > len(tables) {
		end = len(tables)
	}
	if start > end {
		// An out-of-bounds selection is an empty batch, not an error.
		return nil, nil
	}
	return tables[start-1 : end], nil
}
