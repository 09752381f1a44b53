package validation

import (
	"context"
	"log/slog"
	"testing"

	"media-vault/domain/mimetypes"
	"media-vault/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newPipeline(t *testing.T, ctrl *gomock.Controller) (*Pipeline, *mocks.MockMediaProber, *mocks.MockMalwareScanner) {
	t.Helper()
	log := slog.Default()

	scripts, err := NewScriptScreener()
	require.NoError(t, err)

	prober := mocks.NewMockMediaProber(ctrl)
	scanner := mocks.NewMockMalwareScanner(ctrl)

	p := NewPipeline(
		log,
		NewImageValidator(log, 4096, 4096, scripts),
		NewMediaValidator(log, prober, 600),
		NewDocumentValidator(log, scanner, false, scripts),
	)
	return p, prober, scanner
}

func TestPipeline_ValidPNG(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	p, _, _ := newPipeline(t, ctrl)

	res, err := p.Validate(context.Background(), makePNG(t, 64, 64), mimetypes.ImagePNG)
	req.NoError(err)
	req.True(res.Valid)
	req.Equal(mimetypes.ImagePNG, res.MIME)
	req.Equal(mimetypes.KindImage, res.Kind)
	req.NotNil(res.Metadata)
}

func TestPipeline_TooSmall(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	p, _, _ := newPipeline(t, ctrl)

	res, err := p.Validate(context.Background(), []byte("x"), mimetypes.ImagePNG)
	req.NoError(err)
	req.False(res.Valid)
	req.Contains(res.FailureReason, "too small")
}

func TestPipeline_ExecutableBeatsEverything(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	p, _, _ := newPipeline(t, ctrl)

	// MZ at offset zero rejects regardless of what the client declared and
	// before any validator runs.
	data := padTo([]byte{0x4D, 0x5A, 0x90, 0x00}, MinSniffSize)
	res, err := p.Validate(context.Background(), data, mimetypes.ImagePNG)
	req.NoError(err)
	req.False(res.Valid)
	req.Contains(res.FailureReason, "executable content")
}

func TestPipeline_DeclaredMismatch(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	p, _, _ := newPipeline(t, ctrl)

	res, err := p.Validate(context.Background(), makePNG(t, 64, 64), mimetypes.ImageJPEG)
	req.NoError(err)
	req.False(res.Valid)
	req.Contains(res.FailureReason, "does not match detected")
}

func TestPipeline_UnsupportedKind(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	p, _, _ := newPipeline(t, ctrl)

	// Sniffable but unroutable: HTML has no kind in the closed enum.
	html := padTo([]byte("<html><body><p>hello</p></body></html>"), MinSniffSize)
	res, err := p.Validate(context.Background(), html, mimetypes.TextHTML)
	req.NoError(err)
	req.False(res.Valid)
}
