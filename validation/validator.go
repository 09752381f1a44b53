package validation

import (
	"context"
	"errors"
	"log/slog"

	"media-vault/domain"
	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"
)

// Result is the shape every validation path returns.
type Result struct {
	Valid            bool
	MIME             mimetypes.MIME
	Extension        string
	Kind             mimetypes.MediaKind
	Metadata         *domain.Metadata
	FailureReason    string
	SecurityWarnings []string
}

func rejected(sniffed Sniffed, reason string) Result {
	return Result{
		Valid:         false,
		MIME:          sniffed.MIME,
		Extension:     sniffed.Extension,
		FailureReason: reason,
	}
}

// Pipeline chains the sniffer, the security screeners and the per-kind
// validators in a fixed order:
//
//	size floor -> executable screen -> sniff -> polyglot warn ->
//	declared/detected mismatch -> kind dispatch
//
// The executable screen is unconditional and cannot be bypassed by a later
// structurally-valid decode. The returned error is non-nil only for
// infrastructure failures; content rejection always comes back as a Result
// with Valid=false and a reason.
type Pipeline struct {
	log    *slog.Logger
	images *ImageValidator
	media  *MediaValidator
	docs   *DocumentValidator
}

func NewPipeline(log *slog.Logger, images *ImageValidator, media *MediaValidator, docs *DocumentValidator) *Pipeline {
	return &Pipeline{
		log:    log,
		images: images,
		media:  media,
		docs:   docs,
	}
}

func (p *Pipeline) Validate(ctx context.Context, data []byte, declared mimetypes.MIME) (Result, error) {
	if len(data) < MinSniffSize {
		return Result{Valid: false, FailureReason: reasonOf(
			apperrors.Validation("too small to be valid media (%d bytes)", len(data)))}, nil
	}

	if err := ScreenExecutable(data); err != nil {
		return Result{Valid: false, FailureReason: reasonOf(err)}, nil
	}

	sniffed, err := Sniff(data)
	if err != nil {
		return Result{Valid: false, FailureReason: reasonOf(err)}, nil
	}

	warnings := ScreenPolyglot(data)

	if err := ScreenMismatch(declared, sniffed.MIME); err != nil {
		res := rejected(sniffed, reasonOf(err))
		res.SecurityWarnings = warnings
		return res, nil
	}

	kind, ok := mimetypes.KindOf(sniffed.MIME)
	if !ok {
		res := rejected(sniffed, "unsupported media type "+string(sniffed.MIME))
		res.SecurityWarnings = warnings
		return res, nil
	}

	var res Result
	switch kind {
	case mimetypes.KindImage:
		res = p.images.Validate(data, sniffed)
	case mimetypes.KindVideo, mimetypes.KindAudio:
		res, err = p.media.Validate(ctx, data, sniffed, kind)
	case mimetypes.KindDocument:
		res, err = p.docs.Validate(ctx, data, sniffed)
	default:
		// KindOf returns only the four kinds above; a new kind added there
		// must be routed here or everything of that kind is rejected.
		res = rejected(sniffed, "unhandled media kind "+string(kind))
	}
	if err != nil {
		return Result{}, err
	}

	res.SecurityWarnings = append(warnings, res.SecurityWarnings...)
	return res, nil
}

func reasonOf(err error) string {
	var v *apperrors.ValidationError
	if errors.As(err, &v) {
		return v.Reason
	}
	return err.Error()
}
