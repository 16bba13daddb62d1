// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ocr recognizes text in cropped coordinate tables and parses it into
// marker records. Recognition is delegated to an Engine (Tesseract in-process
// by default); this package owns only the engine contract and the
// deterministic cleaning rules that turn raw table text into records.
package ocr

import (
	"context"
	"fmt"

	"github.com/surveyth/cadastre-engine/pkg/types"
)

// Input is a single table image submitted for recognition.
type Input struct {
	// Path is the table image file on disk.
	Path string
	// Language is the trained-data language hint (e.g. "eng", "tha").
	Language string
}

// Line is one recognized text line with its mean word confidence in [0,1].
type Line struct {
	Text       string
	Confidence float64
}

// Result is the recognition output for one input image.
type Result struct {
	// PlainText is the full recognized text.
	PlainText string
	// Lines preserves the table rows top to bottom. Row order becomes
	// marker order, which defines the boundary ring.
	Lines []Line
	// Confidence is the mean confidence over all lines, in [0,1].
	Confidence float64
}

// Engine is the OCR provider contract: one image in, one result out.
// Implementations must be safe for sequential reuse across a batch.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// NewEngine builds the engine selected by config: "tesseract" (in-process
// gosseract client) or "tesseract-exec" (tesseract binary on PATH).
func NewEngine(cfg types.ExtractConfig) (Engine, error) {
	switch cfg.Engine {
	case "", "tesseract":
		return NewTesseractEngine(), nil
	case "tesseract-exec":
		return NewExecEngine(), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q (want tesseract or tesseract-exec)", cfg.Engine)
	}
}
