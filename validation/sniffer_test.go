package validation

import (
	"bytes"
	"testing"

	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"

	"github.com/stretchr/testify/require"
)

func TestSniff_TooSmall(t *testing.T) {
	req := require.New(t)

	_, err := Sniff([]byte("tiny"))
	req.Error(err)
	req.True(apperrors.IsValidation(err))
	req.Contains(err.Error(), "too small")
}

func TestSniff_UnknownFormat(t *testing.T) {
	req := require.New(t)

	// High-entropy-looking garbage with no known signature.
	data := bytes.Repeat([]byte{0x01, 0x8F, 0x3C, 0xA2}, 64)
	_, err := Sniff(data)
	req.Error(err)
	req.True(apperrors.IsValidation(err))
}

func TestSniff_PNG(t *testing.T) {
	req := require.New(t)

	sniffed, err := Sniff(makePNG(t, 64, 64))
	req.NoError(err)
	req.Equal(mimetypes.ImagePNG, sniffed.MIME)
	req.Equal(".png", sniffed.Extension)
}

func TestSniff_IgnoresDeclaredNothing(t *testing.T) {
	req := require.New(t)

	// A PNG is a PNG no matter what anyone claims; Sniff takes bytes only.
	data := makePNG(t, 32, 32)
	first, err := Sniff(data)
	req.NoError(err)
	second, err := Sniff(data)
	req.NoError(err)
	req.Equal(first, second)
}
