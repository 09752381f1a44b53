package validation

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"media-vault/domain"
	"media-vault/domain/mimetypes"
)

// ImageValidator proves structural validity by decoding the raster fully.
// SVG never reaches the decoder: it is executable markup and is routed to
// the script screener instead.
type ImageValidator struct {
	log       *slog.Logger
	maxWidth  int
	maxHeight int
	scripts   *ScriptScreener
}

func NewImageValidator(log *slog.Logger, maxWidth, maxHeight int, scripts *ScriptScreener) *ImageValidator {
	return &ImageValidator{
		log:       log,
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
		scripts:   scripts,
	}
}

func (v *ImageValidator) Validate(data []byte, sniffed Sniffed) Result {
	if sniffed.MIME.IsSVG() {
		return v.validateSVG(data, sniffed)
	}

	// Header first: the dimension guard must fire before the full decode
	// so oversized bombs never reach the expensive path.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return rejected(sniffed, fmt.Sprintf("corrupt image: %v", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return rejected(sniffed, "corrupt image: missing dimensions")
	}
	if cfg.Width > v.maxWidth || cfg.Height > v.maxHeight {
		return rejected(sniffed, fmt.Sprintf(
			"image dimensions %dx%d exceed maximum %dx%d (decompression guard)",
			cfg.Width, cfg.Height, v.maxWidth, v.maxHeight))
	}

	// The full decode IS the structural-integrity proof.
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return rejected(sniffed, fmt.Sprintf("corrupt image: %v", err))
	}

	bounds := img.Bounds()
	return Result{
		Valid:     true,
		MIME:      sniffed.MIME,
		Extension: sniffed.Extension,
		Kind:      mimetypes.KindImage,
		Metadata: &domain.Metadata{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			Format: string(sniffed.MIME),
		},
	}
}

func (v *ImageValidator) validateSVG(data []byte, sniffed Sniffed) Result {
	if markers := v.scripts.FindMarkers(data); len(markers) > 0 {
		v.log.Warn("SVG rejected for embedded script", "markers", markers)
		return rejected(sniffed, fmt.Sprintf("svg contains script content (%v)", markers))
	}

	return Result{
		Valid:     true,
		MIME:      sniffed.MIME,
		Extension: sniffed.Extension,
		Kind:      mimetypes.KindImage,
		Metadata:  &domain.Metadata{Format: string(sniffed.MIME)},
	}
}
