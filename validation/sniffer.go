package validation

import (
	apperrors "media-vault/errors"

	"media-vault/domain/mimetypes"

	"github.com/gabriel-vasile/mimetype"
)

// MinSniffSize is the floor below which content cannot be valid media.
// Anything smaller is rejected before sniffing is even attempted.
const MinSniffSize = 128

type Sniffed struct {
	MIME      mimetypes.MIME
	Extension string
}

// Sniff identifies the true binary type from the bytes alone. Filenames and
// client-declared headers never participate; the result is the sole routing
// input for everything downstream.
func Sniff(data []byte) (Sniffed, error) {
	if len(data) < MinSniffSize {
		return Sniffed{}, apperrors.Validation("too small to be valid media (%d bytes)", len(data))
	}

	detected := mimetype.Detect(data)
	m := mimetypes.Normalize(detected.String())
	if m == mimetypes.Unknown || m == mimetypes.OctetStream {
		return Sniffed{}, apperrors.Validation("unknown binary format")
	}

	return Sniffed{MIME: m, Extension: detected.Extension()}, nil
}
