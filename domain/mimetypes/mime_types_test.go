package mimetypes

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MIME
	}{
		{"Plain text with charset", "text/plain; charset=utf-8", TextPlain},
		{"PNG", "image/png", ImagePNG},
		{"Uppercase", "IMAGE/PNG", ImagePNG},
		{"SVG with params", "image/svg+xml; charset=utf-8", ImageSVG},
		{"PDF", "application/pdf", ApplicationPDF},
		{"Invalid MIME", "not a mime", Unknown},
		{"Empty", "", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %v; want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		mime MIME
		kind MediaKind
		ok   bool
	}{
		{"PNG is image", ImagePNG, KindImage, true},
		{"SVG is image", ImageSVG, KindImage, true},
		{"MP4 is video", VideoMP4, KindVideo, true},
		{"Matroska is video", VideoMKV, KindVideo, true},
		{"MPEG audio", AudioMPEG, KindAudio, true},
		{"FLAC audio", AudioFLAC, KindAudio, true},
		{"PDF is document", ApplicationPDF, KindDocument, true},
		{"Plain text is document", TextPlain, KindDocument, true},

		// Closed enum: everything else is unroutable.
		{"Octet stream", OctetStream, "", false},
		{"HTML", TextHTML, "", false},
		{"JSON", ApplicationJSON, "", false},
		{"Unknown", Unknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindOf(tt.mime)
			if ok != tt.ok || kind != tt.kind {
				t.Errorf("KindOf(%q) = (%v, %v); want (%v, %v)", tt.mime, kind, ok, tt.kind, tt.ok)
			}
		})
	}
}

func TestIsSVG(t *testing.T) {
	if !ImageSVG.IsSVG() {
		t.Error("ImageSVG should report IsSVG")
	}
	if ImagePNG.IsSVG() {
		t.Error("ImagePNG should not report IsSVG")
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		detected string
		expected MIME
		want     bool
	}{
		{"Exact", "image/png", ImagePNG, true},
		{"With charset", "text/plain; charset=utf-8", TextPlain, true},
		{"Mismatch", "image/jpeg", ImagePNG, false},
		{"Invalid", "not a mime", TextPlain, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.detected, tt.expected); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v; want %v", tt.detected, tt.expected, got, tt.want)
			}
		})
	}
}
