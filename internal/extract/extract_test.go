// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/surveyth/cadastre-engine/internal/deedfile"
	"github.com/surveyth/cadastre-engine/internal/ocr"
	"github.com/surveyth/cadastre-engine/pkg/types"
)

// fakeEngine implements ocr.Engine for testing. It returns canned text per
// image basename, or an error.
type fakeEngine struct {
	texts map[string]string // basename -> recognized text
	err   error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	text := f.texts[filepath.Base(in.Path)]
	var lines []ocr.Line
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, ocr.Line{Text: l, Confidence: 0.9})
		}
	}
	return ocr.Result{PlainText: text, Lines: lines}, nil
}

func writeTable(t *testing.T, dir, base string) string {
	t.Helper()
	path := deedfile.TablePath(dir, base)
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig() types.Config {
	cfg := types.Config{}
	cfg.Meta.DOLOffice = "Narathivas"
	cfg.Deed.SurveyType = "MAP-L1"
	cfg.ApplyDefaults()
	return cfg
}

func TestExtractBatch(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "p01")
	writeTable(t, dir, "p02")

	engine := &fakeEngine{texts: map[string]string{
		"p01_table.jpg": "s41 711042.723 810293.807\ns21 711325.209 810466.417\n19 711354.507 810440.839",
		"p02_table.jpg": "s24 711494.218 810313.001\ns23 garbage\ns22 711328.714 810147.726",
	}}

	var log bytes.Buffer
	summary, err := ExtractBatch(context.Background(), engine, dir, testConfig(), Options{}, &log)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Extracted != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 extracted", summary)
	}

	p, err := deedfile.Load(deedfile.OCRPath(dir, "p01"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Markers) != 3 {
		t.Fatalf("p01 markers = %d, want 3", len(p.Markers))
	}
	if p.EPSG != types.DefaultEPSG {
		t.Errorf("p01 EPSG = %d, want %d", p.EPSG, types.DefaultEPSG)
	}
	if p.Office != "Narathivas" {
		t.Errorf("p01 office = %q", p.Office)
	}
	if p.Engine != "fake" {
		t.Errorf("p01 engine = %q", p.Engine)
	}

	// p02 row 2 is noise: kept, flagged.
	p, err = deedfile.Load(deedfile.OCRPath(dir, "p02"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.UnverifiedIDs(); len(got) != 1 || got[0] != "B" {
		t.Errorf("p02 unverified = %v, want [B]", got)
	}
	if !strings.Contains(log.String(), "1 unverified") {
		t.Errorf("log %q missing unverified count", log.String())
	}
}

func TestExtractBatchSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "p01")

	engine := &fakeEngine{texts: map[string]string{
		"p01_table.jpg": "s41 711042.723 810293.807",
	}}

	var log bytes.Buffer
	if _, err := ExtractBatch(context.Background(), engine, dir, testConfig(), Options{}, &log); err != nil {
		t.Fatal(err)
	}

	log.Reset()
	summary, err := ExtractBatch(context.Background(), engine, dir, testConfig(), Options{}, &log)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Extracted != 0 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}

	// --force re-extracts.
	summary, err = ExtractBatch(context.Background(), engine, dir, testConfig(), Options{Force: true}, &log)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Extracted != 1 {
		t.Errorf("forced summary = %+v, want 1 extracted", summary)
	}
}

func TestExtractBatchEngineFailureContinues(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "p01")

	engine := &fakeEngine{err: errors.New("tesseract exploded")}

	var log bytes.Buffer
	summary, err := ExtractBatch(context.Background(), engine, dir, testConfig(), Options{}, &log)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
	if !summary.HasFailures() {
		t.Error("HasFailures() = false")
	}
	if !strings.Contains(log.String(), "failed:") {
		t.Errorf("log %q missing failure line", log.String())
	}
}

func TestExtractBatchNoTables(t *testing.T) {
	var log bytes.Buffer
	if _, err := ExtractBatch(context.Background(), &fakeEngine{}, t.TempDir(), testConfig(), Options{}, &log); err == nil {
		t.Fatal("want error for empty folder")
	}
}

func TestExtractBatchRangeBeyondTables(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "p01")
	writeTable(t, dir, "p02")

	// A range past the end of the list warns and processes nothing; it is
	// not a batch failure.
	var log bytes.Buffer
	summary, err := ExtractBatch(context.Background(), &fakeEngine{}, dir, testConfig(), Options{Range: "8,12"}, &log)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total() != 0 {
		t.Errorf("summary = %+v, want empty", summary)
	}
	if !strings.Contains(log.String(), "processing nothing") {
		t.Errorf("log %q missing empty-selection warning", log.String())
	}
}

func TestFilterRange(t *testing.T) {
	tables := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		rangeStr string
		want     []string
		wantErr  bool
	}{
		{rangeStr: "", want: tables},
		{rangeStr: "2,4", want: []string{"b", "c", "d"}},
		{rangeStr: "3", want: []string{"c"}},
		{rangeStr: "0,2", want: []string{"a", "b"}}, // clamped
		{rangeStr: "4,99", want: []string{"d", "e"}},
		{rangeStr: "5,2", want: nil}, // inverted, selects nothing
		{rangeStr: "9,12", want: nil},
		{rangeStr: "x,y", wantErr: true},
		{rangeStr: "1,2,3", wantErr: true},
	}
	for _, tt := range tests {
		got, err := filterRange(tables, tt.rangeStr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("filterRange(%q): want error", tt.rangeStr)
			}
			continue
		}
		if err != nil {
			t.Errorf("filterRange(%q): %v", tt.rangeStr, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("filterRange(%q) = %v, want %v", tt.rangeStr, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("filterRange(%q)[%d] = %q, want %q", tt.rangeStr, i, got[i], tt.want[i])
			}
		}
	}
}

func TestListTables(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "p01")
	writeTable(t, dir, "p02")

	var out bytes.Buffer
	if err := ListTables(dir, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "[1]") || !strings.Contains(out.String(), "[2]") {
		t.Errorf("listing %q missing indices", out.String())
	}
}
