// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const binTesseract = "tesseract"

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunOutput(ctx context.Context, name string, args ...string) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunOutput(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// ExecEngine shells out to the tesseract binary. It is the fallback for
// installations where the in-process client cannot be linked.
type ExecEngine struct {
	exec executor
}

// NewExecEngine constructs an engine backed by the tesseract binary on PATH.
func NewExecEngine() *ExecEngine {
	return &ExecEngine{exec: &osExecutor{}}
}

func (e *ExecEngine) Name() string { return "tesseract-exec" }

// Available reports whether the tesseract binary can be found.
func (e *ExecEngine) Available() bool {
	_, err := e.exec.LookPath(binTesseract)
	return err == nil
}

// Recognize runs `tesseract <image> stdout`. The binary reports no
// per-line confidence on this path, so lines carry zero confidence and the
// cleaner decides verification from the parse alone.
func (e *ExecEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	if _, err := e.exec.LookPath(binTesseract); err != nil {
		return Result{}, fmt.Errorf("tesseract binary not found on PATH: %w", err)
	}

	args := []string{in.Path, "stdout", "--psm", "6"}
	if in.Language != "" {
		args = append(args, "-l", in.Language)
	}
	out, err := e.exec.RunOutput(ctx, binTesseract, args...)
	if err != nil {
		return Result{}, fmt.Errorf("recognize %s: %w", in.Path, err)
	}

	text := strings.TrimSpace(out)
	return Result{PlainText: text, Lines: splitLines(text)}, nil
}
