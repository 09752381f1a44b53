package domain

import (
	"testing"

	"media-vault/domain/mimetypes"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"Pending to Uploaded", StatePending, StateUploaded, true},
		{"Pending to Failed", StatePending, StateFailed, true},
		{"Pending to Deleted", StatePending, StateDeleted, true},
		{"Uploaded to Processing", StateUploaded, StateProcessing, true},
		{"Processing to Ready", StateProcessing, StateReady, true},
		{"Processing to Failed", StateProcessing, StateFailed, true},
		{"Ready to Deleted", StateReady, StateDeleted, true},
		{"Failed to Deleted", StateFailed, StateDeleted, true},

		// No reversals, no skips, no leaving DELETED.
		{"Uploaded back to Pending", StateUploaded, StatePending, false},
		{"Pending straight to Ready", StatePending, StateReady, false},
		{"Pending straight to Processing", StatePending, StateProcessing, false},
		{"Ready back to Processing", StateReady, StateProcessing, false},
		{"Processing to Deleted", StateProcessing, StateDeleted, false},
		{"Deleted to anything", StateDeleted, StateFailed, false},
		{"Ready to Failed", StateReady, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestState_Terminal(t *testing.T) {
	req := require.New(t)

	req.False(StatePending.Terminal())
	req.False(StateUploaded.Terminal())
	req.False(StateProcessing.Terminal())

	req.True(StateReady.Terminal())
	req.True(StateFailed.Terminal())
	req.True(StateDeleted.Terminal())
}

func TestSizeLimits_ForKind(t *testing.T) {
	req := require.New(t)
	limits := SizeLimits{Image: 10, Video: 20, Audio: 30, Document: 40}

	req.Equal(int64(10), limits.ForKind(mimetypes.KindImage))
	req.Equal(int64(20), limits.ForKind(mimetypes.KindVideo))
	req.Equal(int64(30), limits.ForKind(mimetypes.KindAudio))
	req.Equal(int64(40), limits.ForKind(mimetypes.KindDocument))
	req.Equal(int64(0), limits.ForKind(mimetypes.MediaKind("OTHER")))
}
