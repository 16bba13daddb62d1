// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crop implements the selector stage: cut a user-chosen rectangle out
// of a scanned deed page and persist it as the table image the OCR stage
// consumes. Nothing is written when the ROI or the source image is invalid.
package crop

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // scanned pages arrive as JPEG or PNG
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/surveyth/cadastre-engine/internal/deedfile"
)

// jpegQuality is the encode quality for table crops. High enough that OCR
// sees no additional compression artifacts over the source scan.
const jpegQuality = 92

// ROI is a user-selected rectangle in image pixel space.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ParseROI parses the "x,y,width,height" flag form.
func ParseROI(s string) (ROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return ROI{}, fmt.Errorf("ROI must be x,y,width,height, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return ROI{}, fmt.Errorf("ROI component %q is not an integer", p)
		}
		vals[i] = v
	}
	return ROI{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// Rect returns the ROI as an image.Rectangle.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate checks that the ROI is non-degenerate and lies fully inside
// bounds.
func (r ROI) Validate(bounds image.Rectangle) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("ROI is degenerate: width=%d height=%d", r.Width, r.Height)
	}
	if !r.Rect().In(bounds) {
		return fmt.Errorf("ROI %v exceeds image bounds %v", r.Rect(), bounds)
	}
	return nil
}

// LoadImage decodes the scanned page at path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return img, nil
}

// Crop returns the ROI subimage. The result dimensions equal the ROI
// dimensions exactly.
func Crop(img image.Image, roi ROI) (image.Image, error) {
	if err := roi.Validate(img.Bounds()); err != nil {
		return nil, err
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(roi.Rect()), nil
	}

	// Decoders that produce exotic types without SubImage get a copy.
	out := image.NewRGBA(image.Rect(0, 0, roi.Width, roi.Height))
	for y := 0; y < roi.Height; y++ {
		for x := 0; x < roi.Width; x++ {
			out.Set(x, y, img.At(roi.X+x, roi.Y+y))
		}
	}
	return out, nil
}

// WriteTable crops the scanned page at imagePath to roi and writes the
// result next to it as <base>_table.jpg, returning the output path.
func WriteTable(imagePath string, roi ROI) (string, error) {
	img, err := LoadImage(imagePath)
	if err != nil {
		return "", err
	}

	cropped, err := Crop(img, roi)
	if err != nil {
		return "", fmt.Errorf("cropping %s: %w", imagePath, err)
	}

	dir := filepath.Dir(imagePath)
	base := deedfile.BaseName(imagePath)
	outPath := deedfile.TablePath(dir, base)

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", outPath, err)
	}
	if err := jpeg.Encode(f, cropped, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("encoding %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", outPath, err)
	}
	return outPath, nil
}
