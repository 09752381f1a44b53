package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"media-vault/contract"
	"media-vault/domain"
	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"
)

// DocumentValidator runs the malware scanner and the embedded-script
// screener. The scanner policy is a deployment decision: fail-open treats an
// unreachable daemon as clean (logged loudly, distinctly from a real clean
// verdict); fail-closed turns it into a transient error the worker retries.
type DocumentValidator struct {
	log      *slog.Logger
	scanner  contract.MalwareScanner
	failOpen bool
	scripts  *ScriptScreener
}

func NewDocumentValidator(log *slog.Logger, scanner contract.MalwareScanner, failOpen bool, scripts *ScriptScreener) *DocumentValidator {
	return &DocumentValidator{
		log:      log,
		scanner:  scanner,
		failOpen: failOpen,
		scripts:  scripts,
	}
}

func (v *DocumentValidator) Validate(ctx context.Context, data []byte, sniffed Sniffed) (Result, error) {
	var warnings []string

	report, err := v.scan(ctx, data)
	switch {
	case err != nil && v.failOpen:
		v.log.Warn("malware scan skipped: scanner unavailable, fail-open policy active",
			"error", err)
		warnings = append(warnings, "malware scan skipped: scanner unavailable")
	case err != nil:
		return Result{}, apperrors.Transient("malware scan", err)
	case report.Infected:
		return rejected(sniffed, fmt.Sprintf("malware detected: %s",
			strings.Join(report.Signatures, ", "))), nil
	}

	// Script markers in a document warn without blocking; documents are not
	// rendered as markup the way SVG is.
	if markers := v.scripts.FindMarkers(data); len(markers) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("document contains script-like content (%v)", markers))
	}

	return Result{
		Valid:            true,
		MIME:             sniffed.MIME,
		Extension:        sniffed.Extension,
		Kind:             mimetypes.KindDocument,
		Metadata:         &domain.Metadata{Format: string(sniffed.MIME)},
		SecurityWarnings: warnings,
	}, nil
}

func (v *DocumentValidator) scan(ctx context.Context, data []byte) (contract.ScanReport, error) {
	if v.scanner == nil {
		return contract.ScanReport{}, apperrors.ErrScannerUnavailable
	}
	return v.scanner.Scan(ctx, data)
}
