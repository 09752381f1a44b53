//go:build tools
// +build tools

// Package media_vault pins the Go-based tools this module generates code
// with (mockgen, via `go generate`). The blank imports keep them tracked in
// go.mod and go.sum so a fresh checkout can regenerate without missing-entry
// errors.
package media_vault

import (
	_ "go.uber.org/mock/mockgen"
)
