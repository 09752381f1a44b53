package validation

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// makePNG encodes a gradient so the output stays well above the sniff floor.
func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.GreaterOrEqual(t, buf.Len(), MinSniffSize)
	return buf.Bytes()
}

// padTo appends filler until the payload clears the sniff floor.
func padTo(data []byte, size int) []byte {
	for len(data) < size {
		data = append(data, ' ')
	}
	return data
}
