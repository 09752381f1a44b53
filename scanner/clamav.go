package scanner

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"media-vault/contract"
	apperrors "media-vault/errors"
)

const chunkSize = 32 * 1024

// ClamAV speaks the clamd INSTREAM protocol over TCP. Any connectivity or
// daemon-side error is reported as ErrScannerUnavailable; the fail-open /
// fail-closed decision belongs to the document validator, never here.
type ClamAV struct {
	log     *slog.Logger
	addr    string
	timeout time.Duration
}

func NewClamAV(log *slog.Logger, addr string, timeout time.Duration) *ClamAV {
	return &ClamAV{log: log, addr: addr, timeout: timeout}
}

func (s *ClamAV) Scan(ctx context.Context, data []byte) (contract.ScanReport, error) {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return contract.ScanReport{}, fmt.Errorf("%w: dial %s: %v", apperrors.ErrScannerUnavailable, s.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return contract.ScanReport{}, fmt.Errorf("%w: %v", apperrors.ErrScannerUnavailable, err)
	}

	if err := s.stream(conn, data); err != nil {
		return contract.ScanReport{}, fmt.Errorf("%w: %v", apperrors.ErrScannerUnavailable, err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return contract.ScanReport{}, fmt.Errorf("%w: read reply: %v", apperrors.ErrScannerUnavailable, err)
	}

	return parseReply(string(reply))
}

// stream sends "zINSTREAM\0" followed by length-prefixed chunks and a
// zero-length terminator, per the clamd protocol.
func (s *ClamAV) stream(conn net.Conn, data []byte) error {
	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return err
	}

	var size [4]byte
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		binary.BigEndian.PutUint32(size[:], uint32(len(chunk)))
		if _, err := conn.Write(size[:]); err != nil {
			return err
		}
		if _, err := conn.Write(chunk); err != nil {
			return err
		}
	}

	binary.BigEndian.PutUint32(size[:], 0)
	_, err := conn.Write(size[:])
	return err
}

func parseReply(reply string) (contract.ScanReport, error) {
	reply = strings.TrimRight(reply, "\x00\n ")

	switch {
	case strings.HasSuffix(reply, "OK"):
		return contract.ScanReport{}, nil
	case strings.HasSuffix(reply, "FOUND"):
		sig := strings.TrimSuffix(reply, " FOUND")
		if idx := strings.Index(sig, ": "); idx >= 0 {
			sig = sig[idx+2:]
		}
		return contract.ScanReport{Infected: true, Signatures: []string{sig}}, nil
	case strings.HasSuffix(reply, "ERROR"):
		return contract.ScanReport{}, fmt.Errorf("%w: daemon error: %s", apperrors.ErrScannerUnavailable, reply)
	default:
		return contract.ScanReport{}, fmt.Errorf("%w: unexpected reply %q", apperrors.ErrScannerUnavailable, reply)
	}
}
