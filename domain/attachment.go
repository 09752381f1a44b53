package domain

import (
	"time"

	"media-vault/domain/mimetypes"

	"github.com/google/uuid"
)

type State string

const (
	StatePending    State = "PENDING"
	StateUploaded   State = "UPLOADED"
	StateProcessing State = "PROCESSING"
	StateReady      State = "READY"
	StateFailed     State = "FAILED"
	StateDeleted    State = "DELETED"
)

// transitions encodes the lifecycle DAG. Single entry (PENDING), terminal
// leaves (READY, FAILED, DELETED), no cycles and no reversals.
var transitions = map[State][]State{
	StatePending:    {StateUploaded, StateFailed, StateDeleted},
	StateUploaded:   {StateProcessing, StateFailed, StateDeleted},
	StateProcessing: {StateReady, StateFailed},
	StateReady:      {StateDeleted},
	StateFailed:     {StateDeleted},
	StateDeleted:    {},
}

func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateDeleted
}

// Metadata holds what the worker extracted from the bytes. Kind-dependent:
// images fill dimensions, audio/video fill duration and bitrate.
type Metadata struct {
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	BitRate         int64   `json:"bit_rate,omitempty"`
	Format          string  `json:"format,omitempty"`
}

// Attachment is the central record of the pipeline.
//
// ObjectKey is immutable once set (at confirm time). DetectedMime is the only
// authority for routing; DeclaredMime exists solely to be checked against it.
// Metadata is written exactly once, by the worker, never by the orchestrator.
type Attachment struct {
	ID       uuid.UUID `json:"id"`
	UploadID string    `json:"upload_id"`
	OwnerID  string    `json:"owner_id"`
	FileName string    `json:"file_name"`

	DeclaredMime mimetypes.MIME      `json:"declared_mime"`
	DetectedMime mimetypes.MIME      `json:"detected_mime,omitempty"`
	Kind         mimetypes.MediaKind `json:"kind,omitempty"`

	ObjectKey string `json:"object_key,omitempty"`
	SizeBytes int64  `json:"size_bytes"`

	State State `json:"state"`

	Metadata      *Metadata `json:"metadata,omitempty"`
	ContentDigest string    `json:"content_digest,omitempty"`

	FailureReason    string   `json:"failure_reason,omitempty"`
	SecurityWarnings []string `json:"security_warnings,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
}

// SizeLimits are the per-kind upload ceilings enforced at initiate time,
// inferred from the declared MIME before a single byte exists.
type SizeLimits struct {
	Image    int64
	Video    int64
	Audio    int64
	Document int64
}

func (l SizeLimits) ForKind(kind mimetypes.MediaKind) int64 {
	switch kind {
	case mimetypes.KindImage:
		return l.Image
	case mimetypes.KindVideo:
		return l.Video
	case mimetypes.KindAudio:
		return l.Audio
	case mimetypes.KindDocument:
		return l.Document
	}
	return 0
}
