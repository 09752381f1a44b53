package mimetypes

import "mime"

type MIME string

const (
	Unknown     MIME = "unknown"
	OctetStream MIME = "application/octet-stream"

	TextPlain MIME = "text/plain"
	TextHTML  MIME = "text/html"

	ApplicationPDF  MIME = "application/pdf"
	ApplicationJSON MIME = "application/json"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWebP MIME = "image/webp"
	ImageSVG  MIME = "image/svg+xml"

	VideoMP4  MIME = "video/mp4"
	VideoWebM MIME = "video/webm"
	VideoMKV  MIME = "video/x-matroska"

	AudioMPEG MIME = "audio/mpeg"
	AudioOGG  MIME = "audio/ogg"
	AudioWAV  MIME = "audio/wav"
	AudioFLAC MIME = "audio/flac"
)

// MediaKind is the closed routing enum derived once from the detected MIME.
// All downstream dispatch switches over it; there is no default-accept branch
// anywhere, so an unknown kind can only ever be rejected.
type MediaKind string

const (
	KindImage    MediaKind = "IMAGE"
	KindVideo    MediaKind = "VIDEO"
	KindAudio    MediaKind = "AUDIO"
	KindDocument MediaKind = "DOCUMENT"
)

var kindByMIME = map[MIME]MediaKind{
	ImagePNG:  KindImage,
	ImageJPEG: KindImage,
	ImageGIF:  KindImage,
	ImageWebP: KindImage,
	ImageSVG:  KindImage,

	VideoMP4:  KindVideo,
	VideoWebM: KindVideo,
	VideoMKV:  KindVideo,

	AudioMPEG: KindAudio,
	AudioOGG:  KindAudio,
	AudioWAV:  KindAudio,
	AudioFLAC: KindAudio,

	ApplicationPDF: KindDocument,
	TextPlain:      KindDocument,
}

// Normalize strips parameters such as "; charset=utf-8" and lowercases the
// media type. Returns Unknown when the input is not a parseable media type.
func Normalize(raw string) MIME {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return Unknown
	}
	return MIME(mt)
}

// KindOf maps a detected MIME onto the closed MediaKind enum.
// The boolean is false for any type this pipeline does not accept.
func KindOf(m MIME) (MediaKind, bool) {
	kind, ok := kindByMIME[m]
	return kind, ok
}

func (m MIME) IsSVG() bool {
	return m == ImageSVG
}

func Matches(detected string, expected MIME) bool {
	return Normalize(detected) == expected
}
