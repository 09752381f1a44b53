package prober

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"media-vault/contract"
	apperrors "media-vault/errors"
)

// FFProbe shells out to ffprobe with its own timeout so a stalled tool can
// never pin a worker. A missing binary or a timeout is reported as
// ErrProberUnavailable; a non-zero exit on a readable binary means the file
// itself is bad and is returned as a plain error.
type FFProbe struct {
	log     *slog.Logger
	binPath string
	timeout time.Duration
}

func NewFFProbe(log *slog.Logger, binPath string, timeout time.Duration) *FFProbe {
	return &FFProbe{log: log, binPath: binPath, timeout: timeout}
}

func (p *FFProbe) Probe(ctx context.Context, path string) (contract.ProbeReport, error) {
	if _, err := exec.LookPath(p.binPath); err != nil {
		return contract.ProbeReport{}, fmt.Errorf("%w: %s not found", apperrors.ErrProberUnavailable, p.binPath)
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, p.binPath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
		p.log.Warn("ffprobe timed out", "timeout", p.timeout)
		return contract.ProbeReport{}, fmt.Errorf("%w: probe timed out after %s", apperrors.ErrProberUnavailable, p.timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return contract.ProbeReport{}, fmt.Errorf("ffprobe rejected input: %s", string(exitErr.Stderr))
		}
		return contract.ProbeReport{}, fmt.Errorf("%w: %v", apperrors.ErrProberUnavailable, err)
	}

	return parseOutput(out)
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

func parseOutput(out []byte) (contract.ProbeReport, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return contract.ProbeReport{}, fmt.Errorf("unparseable ffprobe output: %w", err)
	}

	report := contract.ProbeReport{Format: raw.Format.FormatName}
	for _, s := range raw.Streams {
		report.Streams = append(report.Streams, contract.ProbeStream{
			CodecType: s.CodecType,
			Width:     s.Width,
			Height:    s.Height,
		})
	}

	// ffprobe prints numerics as strings; absent fields stay zero.
	if raw.Format.Duration != "" {
		d, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err != nil {
			return contract.ProbeReport{}, fmt.Errorf("unparseable duration %q: %w", raw.Format.Duration, err)
		}
		report.DurationSeconds = d
	}
	if raw.Format.BitRate != "" {
		if b, err := strconv.ParseInt(raw.Format.BitRate, 10, 64); err == nil {
			report.BitRate = b
		}
	}

	return report, nil
}
