// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// SchemaError reports a structural problem in a deed file or CONFIG.toml:
// a missing table, a field of the wrong type, an unusable EPSG code. It is a
// distinct error kind so callers can tell malformed input apart from I/O
// failures; per-record OCR noise is not a SchemaError (noisy records are
// loaded flagged unverified instead).
type SchemaError struct {
	// Path is the file the error was found in.
	Path string
	// Field is the offending key, in TOML dotted form ("meta.epsg").
	Field string
	// Reason describes what was wrong.
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: field %s: %s", e.Path, e.Field, e.Reason)
}

// NewSchemaError builds a SchemaError for path with a formatted reason.
func NewSchemaError(path, field, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Field: field, Reason: fmt.Sprintf(format, args...)}
}
