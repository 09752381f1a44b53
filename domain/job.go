package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job is the queue-resident unit of work. It never outlives the queue's own
// storage; the attachment record is the durable source of truth.
type Job struct {
	ID             uuid.UUID `json:"id"`
	AttachmentID   uuid.UUID `json:"attachment_id"`
	AttemptCount   int       `json:"attempt_count"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
	LeaseExpiresAt time.Time `json:"lease_expires_at,omitempty"`
}

func NewJob(attachmentID uuid.UUID) Job {
	return Job{
		ID:           uuid.New(),
		AttachmentID: attachmentID,
		EnqueuedAt:   time.Now().UTC(),
	}
}
