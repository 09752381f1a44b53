package validation

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"media-vault/contract"
	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"
	"media-vault/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMediaValidator_ProberUnavailable(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prober := mocks.NewMockMediaProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(contract.ProbeReport{}, apperrors.ErrProberUnavailable)

	v := NewMediaValidator(slog.Default(), prober, 600)

	res, err := v.Validate(context.Background(), []byte("fake media"),
		Sniffed{MIME: mimetypes.VideoMP4}, mimetypes.KindVideo)
	req.NoError(err)

	// Availability wins: accepted on the sniffed type, duration unknown,
	// with a warning the owner can see.
	req.True(res.Valid)
	req.Zero(res.Metadata.DurationSeconds)
	req.Len(res.SecurityWarnings, 1)
	req.Contains(res.SecurityWarnings[0], "prober unavailable")
}

func TestMediaValidator_UnreadableContainer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prober := mocks.NewMockMediaProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(contract.ProbeReport{}, errors.New("moov atom not found"))

	v := NewMediaValidator(slog.Default(), prober, 600)

	// The tool ran and refused the file: content problem, not infrastructure.
	res, err := v.Validate(context.Background(), []byte("fake media"),
		Sniffed{MIME: mimetypes.VideoMP4}, mimetypes.KindVideo)
	req.NoError(err)
	req.False(res.Valid)
	req.Contains(res.FailureReason, "unreadable media container")
}

func TestMediaValidator_NoMatchingStream(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prober := mocks.NewMockMediaProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(contract.ProbeReport{
			Streams:         []contract.ProbeStream{{CodecType: "audio"}},
			DurationSeconds: 10,
		}, nil)

	v := NewMediaValidator(slog.Default(), prober, 600)

	res, err := v.Validate(context.Background(), []byte("fake media"),
		Sniffed{MIME: mimetypes.VideoMP4}, mimetypes.KindVideo)
	req.NoError(err)
	req.False(res.Valid)
	req.Contains(res.FailureReason, "no video stream")
}

func TestMediaValidator_DurationCeiling(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prober := mocks.NewMockMediaProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(contract.ProbeReport{
			Streams:         []contract.ProbeStream{{CodecType: "audio"}},
			DurationSeconds: 601.5,
		}, nil)

	v := NewMediaValidator(slog.Default(), prober, 600)

	res, err := v.Validate(context.Background(), []byte("fake media"),
		Sniffed{MIME: mimetypes.AudioMPEG}, mimetypes.KindAudio)
	req.NoError(err)
	req.False(res.Valid)
	req.Contains(res.FailureReason, "exceeds maximum")
}

func TestMediaValidator_ValidVideo(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prober := mocks.NewMockMediaProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(contract.ProbeReport{
			Streams: []contract.ProbeStream{
				{CodecType: "audio"},
				{CodecType: "video", Width: 1920, Height: 1080},
			},
			DurationSeconds: 42.5,
			BitRate:         800_000,
			Format:          "mov,mp4,m4a",
		}, nil)

	v := NewMediaValidator(slog.Default(), prober, 600)

	res, err := v.Validate(context.Background(), []byte("fake media"),
		Sniffed{MIME: mimetypes.VideoMP4}, mimetypes.KindVideo)
	req.NoError(err)
	req.True(res.Valid)
	req.Equal(mimetypes.KindVideo, res.Kind)
	req.InDelta(42.5, res.Metadata.DurationSeconds, 0.001)
	req.Equal(int64(800_000), res.Metadata.BitRate)
	req.Equal(1920, res.Metadata.Width)
	req.Equal(1080, res.Metadata.Height)
}
