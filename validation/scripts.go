package validation

import (
	"strings"

	goahocorasick "github.com/anknown/ahocorasick"
)

// scriptScanWindow bounds the scan to the head of the buffer, where injected
// markup has to live to be interpreted by a renderer.
const scriptScanWindow = 8 * 1024

// scriptMarkers is the fixed list of script-injection markers. Matching is
// case-insensitive over the scan window.
var scriptMarkers = []string{
	"<script",
	"javascript:",
	"vbscript:",
	"data:text/html",
	"onerror=",
	"onload=",
}

// ScriptScreener finds embedded-script markers using an Aho-Corasick
// automaton built once over the marker list. For documents a hit is a
// warning; for SVG (executable markup) any hit is a hard rejection, decided
// by the callers.
type ScriptScreener struct {
	matcher *goahocorasick.Machine
}

func NewScriptScreener() (*ScriptScreener, error) {
	patterns := make([][]rune, len(scriptMarkers))
	for i, marker := range scriptMarkers {
		patterns[i] = []rune(marker)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &ScriptScreener{matcher: m}, nil
}

// FindMarkers returns the distinct markers present in the first 8KB of data.
func (s *ScriptScreener) FindMarkers(data []byte) []string {
	window := data
	if len(window) > scriptScanWindow {
		window = window[:scriptScanWindow]
	}

	haystack := []rune(strings.ToLower(string(window)))
	spans := s.matcher.MultiPatternSearch(haystack, false)
	if len(spans) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var found []string
	for _, span := range spans {
		marker := string(span.Word)
		if _, ok := seen[marker]; ok {
			continue
		}
		seen[marker] = struct{}{}
		found = append(found, marker)
	}
	return found
}
