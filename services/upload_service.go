package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"media-vault/contract"
	"media-vault/domain"
	"media-vault/domain/event"
	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// UploadService owns the attachment lifecycle up to the queue: it issues
// upload grants, confirms object presence and enqueues exactly one processing
// job per successful upload. Everything past UPLOADED belongs to the worker.
type UploadService struct {
	log        *slog.Logger
	repo       contract.AttachmentRepository
	blobs      contract.BlobStore
	queue      contract.Queue
	events     chan event.LifecycleEvent
	limits     domain.SizeLimits
	presignTTL time.Duration
	validate   *validator.Validate
}

func NewUploadService(
	log *slog.Logger,
	repo contract.AttachmentRepository,
	blobs contract.BlobStore,
	queue contract.Queue,
	events chan event.LifecycleEvent,
	limits domain.SizeLimits,
	presignTTL time.Duration,
) *UploadService {
	return &UploadService{
		log:        log,
		repo:       repo,
		blobs:      blobs,
		queue:      queue,
		events:     events,
		limits:     limits,
		presignTTL: presignTTL,
		validate:   validator.New(),
	}
}

type InitiateRequest struct {
	OwnerID      string `validate:"required"`
	FileName     string `validate:"required,max=255"`
	DeclaredMime string `validate:"required"`
	SizeBytes    int64  `validate:"required,gt=0"`
}

type InitiateResponse struct {
	AttachmentID uuid.UUID
	UploadID     string
	PresignedURL string
	ExpiresIn    time.Duration
}

// Initiate validates the declared size against the per-kind ceiling, creates
// a PENDING record and hands back a presigned write target. The object key is
// persisted on the record immediately: a client may write through the
// presigned URL and never confirm, and the reaper can only remove that
// partial object if the PENDING record already knows where it lives.
func (s *UploadService) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return InitiateResponse{}, apperrors.Validation("invalid upload request: %v", err)
	}

	declared := mimetypes.Normalize(req.DeclaredMime)
	kind, ok := mimetypes.KindOf(declared)
	if !ok {
		return InitiateResponse{}, apperrors.Validation("unsupported declared type %q", req.DeclaredMime)
	}

	ceiling := s.limits.ForKind(kind)
	if req.SizeBytes > ceiling {
		return InitiateResponse{}, apperrors.Validation(
			"declared size %d exceeds %s limit of %d bytes", req.SizeBytes, kind, ceiling)
	}

	att := domain.Attachment{
		ID:           uuid.New(),
		UploadID:     uuid.NewString(),
		OwnerID:      req.OwnerID,
		FileName:     sanitizeFileName(req.FileName),
		DeclaredMime: declared,
		SizeBytes:    req.SizeBytes,
		State:        domain.StatePending,
		CreatedAt:    time.Now().UTC(),
	}
	att.ObjectKey = objectKeyFor(att)

	url, err := s.blobs.PresignUpload(ctx, att.ObjectKey, string(declared), req.SizeBytes, s.presignTTL)
	if err != nil {
		return InitiateResponse{}, err
	}

	if err := s.repo.Create(ctx, &att); err != nil {
		return InitiateResponse{}, apperrors.Transient("create attachment", err)
	}

	s.log.Info("Upload grant issued",
		"attachment_id", att.ID, "owner", att.OwnerID, "kind", kind, "declared_size", req.SizeBytes)

	return InitiateResponse{
		AttachmentID: att.ID,
		UploadID:     att.UploadID,
		PresignedURL: url,
		ExpiresIn:    s.presignTTL,
	}, nil
}

// Confirm verifies the object actually exists, transitions PENDING->UPLOADED
// with a CAS and enqueues exactly one job. Idempotent by construction: a
// losing CAS means someone else already confirmed, so no second job is ever
// created and the current record is returned as a success.
func (s *UploadService) Confirm(ctx context.Context, uploadID, callerID string) (domain.Attachment, error) {
	att, err := s.repo.GetByUploadID(ctx, uploadID)
	if err != nil {
		return domain.Attachment{}, err
	}
	if att.OwnerID != callerID {
		return domain.Attachment{}, apperrors.ErrForbidden
	}

	if att.State != domain.StatePending {
		// Already confirmed (or further along): the idempotent success path.
		return att, nil
	}

	size, exists, err := s.blobs.HeadObject(ctx, att.ObjectKey)
	if err != nil {
		return domain.Attachment{}, err
	}
	if !exists {
		return domain.Attachment{}, apperrors.ErrNotUploaded
	}

	updated, swapped, err := s.repo.CASState(ctx, att.ID, domain.StatePending, domain.StateUploaded, func(a *domain.Attachment) {
		a.SizeBytes = size
	})
	if err != nil {
		return domain.Attachment{}, apperrors.Transient("confirm attachment", err)
	}
	if !swapped {
		// Concurrent confirm won the race; its job is already on the queue.
		return updated, nil
	}

	if err := s.queue.Enqueue(ctx, domain.NewJob(updated.ID)); err != nil {
		// The record is UPLOADED but no job exists; the reaper will fail it
		// after the TTL. Surface the enqueue failure to the caller.
		s.log.Error("Enqueue after confirm failed", "attachment_id", updated.ID, "error", err)
		return domain.Attachment{}, apperrors.Transient("enqueue processing job", err)
	}

	s.log.Info("Upload confirmed", "attachment_id", updated.ID, "size", size)
	s.emit(ctx, event.Uploaded{
		AttachmentID: updated.ID,
		OwnerID:      updated.OwnerID,
		At:           time.Now().UTC(),
	})

	return updated, nil
}

// Get returns the attachment to its owner only. Cross-user view grants live
// in the API layer above this module.
func (s *UploadService) Get(ctx context.Context, id uuid.UUID, callerID string) (domain.Attachment, error) {
	att, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Attachment{}, err
	}
	if att.OwnerID != callerID {
		return domain.Attachment{}, apperrors.ErrForbidden
	}
	return att, nil
}

// Delete soft-deletes: the record flips to DELETED with deletedAt/deletedBy
// and the object stays put until the reaper's retention pass. Never deletes
// anything synchronously.
func (s *UploadService) Delete(ctx context.Context, id uuid.UUID, callerID string) (domain.Attachment, error) {
	att, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Attachment{}, err
	}
	if att.OwnerID != callerID {
		return domain.Attachment{}, apperrors.ErrForbidden
	}
	if att.State == domain.StateDeleted {
		return att, nil
	}
	if att.State == domain.StateProcessing {
		// PROCESSING is owned by the worker; deleting under it would race
		// the metadata write. The caller retries once the job settles.
		return domain.Attachment{}, apperrors.ErrStateConflict
	}

	now := time.Now().UTC()
	deleted, swapped, err := s.repo.CASState(ctx, att.ID, att.State, domain.StateDeleted, func(a *domain.Attachment) {
		a.DeletedAt = &now
		a.DeletedBy = callerID
	})
	if err != nil {
		return domain.Attachment{}, apperrors.Transient("delete attachment", err)
	}
	if !swapped {
		return domain.Attachment{}, apperrors.ErrStateConflict
	}

	s.emit(ctx, event.Deleted{AttachmentID: deleted.ID, OwnerID: deleted.OwnerID, At: now})
	return deleted, nil
}

func (s *UploadService) emit(ctx context.Context, e event.LifecycleEvent) {
	select {
	case s.events <- e:
	case <-ctx.Done():
	}
}

func objectKeyFor(att domain.Attachment) string {
	return fmt.Sprintf("attachments/%s/%s/%s", att.OwnerID, att.ID, att.FileName)
}

// sanitizeFileName reduces the client-supplied name to a safe character set.
// Path separators and anything outside [A-Za-z0-9._-] collapse to '_'.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}
