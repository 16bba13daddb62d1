// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web provides the embedded frontend assets for the verification
// editor.
package web

import "embed"

//go:embed all:static
var StaticFS embed.FS
