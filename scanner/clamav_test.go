package scanner

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	apperrors "media-vault/errors"

	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		infected   bool
		signatures []string
		wantErr    bool
	}{
		{"Clean", "stream: OK\x00", false, nil, false},
		{"Infected", "stream: Eicar-Test-Signature FOUND\x00", true, []string{"Eicar-Test-Signature"}, false},
		{"Infected without prefix", "Win.Test.EICAR_HDB-1 FOUND", true, []string{"Win.Test.EICAR_HDB-1"}, false},
		{"Daemon error", "INSTREAM size limit exceeded. ERROR\x00", false, nil, true},
		{"Garbage", "???", false, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			report, err := parseReply(tt.reply)
			if tt.wantErr {
				req.Error(err)
				req.True(errors.Is(err, apperrors.ErrScannerUnavailable))
				return
			}
			req.NoError(err)
			req.Equal(tt.infected, report.Infected)
			req.Equal(tt.signatures, report.Signatures)
		})
	}
}

func TestClamAV_DaemonUnreachable(t *testing.T) {
	req := require.New(t)

	// Nothing listens here; the scanner must surface unavailability, not a
	// verdict.
	s := NewClamAV(slog.Default(), "127.0.0.1:1", 100*time.Millisecond)
	_, err := s.Scan(context.Background(), []byte("data"))
	req.Error(err)
	req.True(errors.Is(err, apperrors.ErrScannerUnavailable))
}
