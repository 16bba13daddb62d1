// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text through the in-process gosseract client.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs the default in-process engine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs Tesseract over the table image. Line boxes carry the row
// structure; when Tesseract cannot produce boxes the plain text is split on
// newlines with unknown confidence.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImage(in.Path); err != nil {
		return Result{}, fmt.Errorf("set image %s: %w", in.Path, err)
	}
	if in.Language != "" {
		if err := c.SetLanguage(in.Language); err != nil {
			return Result{}, fmt.Errorf("set language %s: %w", in.Language, err)
		}
	}
	// Treat the crop as a single uniform block: the input is a bare table,
	// not a full page layout.
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return Result{}, fmt.Errorf("set page segmentation mode: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize %s: %w", in.Path, err)
	}
	text = strings.TrimSpace(text)

	lines, conf := extractLines(c)
	if len(lines) == 0 {
		lines = splitLines(text)
	}
	return Result{PlainText: text, Lines: lines, Confidence: conf}, nil
}

func extractLines(c *gosseract.Client) ([]Line, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	lines := make([]Line, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		sum += conf
		lines = append(lines, Line{Text: text, Confidence: conf})
	}
	if len(lines) == 0 {
		return nil, 0
	}
	return lines, sum / float64(len(lines))
}

func splitLines(text string) []Line {
	var lines []Line
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, Line{Text: l})
		}
	}
	return lines
}
