package event

import (
	"time"

	"media-vault/domain"

	"github.com/google/uuid"
)

// LifecycleEvent is emitted after a durable state change, never before.
// Owner scoping is part of the contract: the fanout delivers an event only to
// sessions authenticated as Owner().
type LifecycleEvent interface {
	Name() string
	Owner() string
	Ref() uuid.UUID
}

type Uploaded struct {
	AttachmentID uuid.UUID `json:"attachment_id"`
	OwnerID      string    `json:"owner_id"`
	At           time.Time `json:"at"`
}

func (e Uploaded) Name() string   { return "media.uploaded" }
func (e Uploaded) Owner() string  { return e.OwnerID }
func (e Uploaded) Ref() uuid.UUID { return e.AttachmentID }

type Processed struct {
	AttachmentID uuid.UUID        `json:"attachment_id"`
	OwnerID      string           `json:"owner_id"`
	Metadata     *domain.Metadata `json:"metadata,omitempty"`
	At           time.Time        `json:"at"`
}

func (e Processed) Name() string   { return "media.processed" }
func (e Processed) Owner() string  { return e.OwnerID }
func (e Processed) Ref() uuid.UUID { return e.AttachmentID }

type Failed struct {
	AttachmentID uuid.UUID `json:"attachment_id"`
	OwnerID      string    `json:"owner_id"`
	Reason       string    `json:"reason"`
	At           time.Time `json:"at"`
}

func (e Failed) Name() string   { return "media.failed" }
func (e Failed) Owner() string  { return e.OwnerID }
func (e Failed) Ref() uuid.UUID { return e.AttachmentID }

type Deleted struct {
	AttachmentID uuid.UUID `json:"attachment_id"`
	OwnerID      string    `json:"owner_id"`
	At           time.Time `json:"at"`
}

func (e Deleted) Name() string   { return "media.deleted" }
func (e Deleted) Owner() string  { return e.OwnerID }
func (e Deleted) Ref() uuid.UUID { return e.AttachmentID }
