package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"media-vault/contract"
	"media-vault/domain"
	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"
)

// MediaValidator proves video/audio validity by asking the prober to
// enumerate streams. The degraded-mode policy is deliberate: when the TOOL is
// unavailable (not the file), accept on the sniffer result alone with a zero
// duration and a loud warning. Availability wins over completeness when
// infrastructure, not content, is the problem.
type MediaValidator struct {
	log                *slog.Logger
	prober             contract.MediaProber
	maxDurationSeconds float64
}

func NewMediaValidator(log *slog.Logger, prober contract.MediaProber, maxDurationSeconds float64) *MediaValidator {
	return &MediaValidator{
		log:                log,
		prober:             prober,
		maxDurationSeconds: maxDurationSeconds,
	}
}

func (v *MediaValidator) Validate(ctx context.Context, data []byte, sniffed Sniffed, kind mimetypes.MediaKind) (Result, error) {
	tmp, err := os.CreateTemp("", "media-vault-probe-*")
	if err != nil {
		return Result{}, apperrors.Transient("probe scratch file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Result{}, apperrors.Transient("probe scratch file", err)
	}
	tmp.Close()

	report, err := v.prober.Probe(ctx, tmp.Name())
	if errors.Is(err, apperrors.ErrProberUnavailable) {
		v.log.Warn("media probe skipped: prober unavailable, accepting on sniffed type alone",
			"mime", sniffed.MIME, "error", err)
		return Result{
			Valid:     true,
			MIME:      sniffed.MIME,
			Extension: sniffed.Extension,
			Kind:      kind,
			Metadata:  &domain.Metadata{DurationSeconds: 0, Format: string(sniffed.MIME)},
			SecurityWarnings: []string{
				"media probe skipped: prober unavailable, duration unknown",
			},
		}, nil
	}
	if err != nil {
		// The tool ran and refused the file: that is a content problem.
		return rejected(sniffed, fmt.Sprintf("unreadable media container: %v", err)), nil
	}

	expected := "audio"
	if kind == mimetypes.KindVideo {
		expected = "video"
	}

	stream, ok := findStream(report, expected)
	if !ok {
		return rejected(sniffed, fmt.Sprintf("no %s stream found", expected)), nil
	}

	if report.DurationSeconds > v.maxDurationSeconds {
		return rejected(sniffed, fmt.Sprintf("duration %.1fs exceeds maximum %.1fs",
			report.DurationSeconds, v.maxDurationSeconds)), nil
	}

	meta := &domain.Metadata{
		DurationSeconds: report.DurationSeconds,
		BitRate:         report.BitRate,
		Format:          report.Format,
	}
	if expected == "video" {
		meta.Width = stream.Width
		meta.Height = stream.Height
	}

	return Result{
		Valid:     true,
		MIME:      sniffed.MIME,
		Extension: sniffed.Extension,
		Kind:      kind,
		Metadata:  meta,
	}, nil
}

func findStream(report contract.ProbeReport, codecType string) (contract.ProbeStream, bool) {
	for _, s := range report.Streams {
		if s.CodecType == codecType {
			return s, true
		}
	}
	return contract.ProbeStream{}, false
}
