package workers

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"media-vault/contract"
	"media-vault/domain"
	"media-vault/domain/event"
	apperrors "media-vault/errors"
	"media-vault/validation"

	"golang.org/x/crypto/blake2b"
)

// Ensure *ProcessorWorker implements the contract.Worker interface at
// compile time.
var _ contract.Worker = (*ProcessorWorker)(nil)

// ProcessorWorker consumes jobs and drives UPLOADED -> PROCESSING ->
// {READY|FAILED}. Delivery is at-least-once, so redelivery is treated as
// normal: a job whose attachment is already terminal is acked without any
// re-validation. All state mutations are single-record CAS operations; the
// worker holds no lock across storage or scanner calls.
type ProcessorWorker struct {
	log            *slog.Logger
	queue          contract.Queue
	repo           contract.AttachmentRepository
	blobs          contract.BlobStore
	pipeline       *validation.Pipeline
	events         chan event.LifecycleEvent
	receiveWait    time.Duration
	nackBaseDelay  time.Duration
	maxAttempts    int
	maxObjectBytes int64
}

func NewProcessorWorker(
	log *slog.Logger,
	queue contract.Queue,
	repo contract.AttachmentRepository,
	blobs contract.BlobStore,
	pipeline *validation.Pipeline,
	events chan event.LifecycleEvent,
	receiveWait time.Duration,
	nackBaseDelay time.Duration,
	maxAttempts int,
	maxObjectBytes int64,
) *ProcessorWorker {
	return &ProcessorWorker{
		log:            log,
		queue:          queue,
		repo:           repo,
		blobs:          blobs,
		pipeline:       pipeline,
		events:         events,
		receiveWait:    receiveWait,
		nackBaseDelay:  nackBaseDelay,
		maxAttempts:    maxAttempts,
		maxObjectBytes: maxObjectBytes,
	}
}

func (w *ProcessorWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		default:
		}

		if _, err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("Queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.nackBaseDelay):
			}
		}
	}
}

// ProcessOne receives at most one job and settles it. The boolean reports
// whether a job was handled; (false, nil) means the queue was idle.
func (w *ProcessorWorker) ProcessOne(ctx context.Context) (bool, error) {
	d, err := w.queue.Receive(ctx, w.receiveWait)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}
	w.handle(ctx, d)
	return true, nil
}

func (w *ProcessorWorker) handle(ctx context.Context, d *contract.Delivery) {
	log := w.log.With("job_id", d.Job.ID, "attachment_id", d.Job.AttachmentID, "attempt", d.Job.AttemptCount)

	att, err := w.repo.Get(ctx, d.Job.AttachmentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Record already reaped; nothing left to do.
		log.Info("Attachment gone, settling job")
		w.ack(ctx, d)
		return
	}
	if err != nil {
		w.retryOrDeadLetter(ctx, d, att, apperrors.Transient("load attachment", err))
		return
	}

	// Redelivery of finished work: ack and walk away.
	if att.State.Terminal() {
		log.Info("Attachment already terminal, skipping re-validation", "state", att.State)
		w.ack(ctx, d)
		return
	}

	claimed, swapped, err := w.repo.CASState(ctx, att.ID, domain.StateUploaded, domain.StateProcessing, nil)
	if err != nil {
		w.retryOrDeadLetter(ctx, d, att, apperrors.Transient("claim attachment", err))
		return
	}
	if !swapped {
		switch {
		case claimed.State.Terminal():
			log.Info("Lost claim to a finished worker", "state", claimed.State)
			w.ack(ctx, d)
			return
		case claimed.State == domain.StateProcessing:
			// A previous holder died mid-job. The queue lease guarantees we
			// are the only active consumer of this job, so resuming is safe:
			// the READY/FAILED CAS below still writes metadata exactly once.
			log.Warn("Resuming job abandoned mid-processing")
		default:
			log.Warn("Attachment not confirmed yet, settling job", "state", claimed.State)
			w.ack(ctx, d)
			return
		}
	}
	att = claimed

	data, err := w.blobs.GetObject(ctx, att.ObjectKey, w.maxObjectBytes)
	if apperrors.IsValidation(err) {
		w.fail(ctx, d, att, err.Error())
		return
	}
	if err != nil {
		w.retryOrDeadLetter(ctx, d, att, err)
		return
	}

	res, err := w.pipeline.Validate(ctx, data, att.DeclaredMime)
	if err != nil {
		// Infrastructure, not content: scanner down under fail-closed, etc.
		w.retryOrDeadLetter(ctx, d, att, err)
		return
	}

	if !res.Valid {
		log.Info("Content rejected", "reason", res.FailureReason, "warnings", res.SecurityWarnings)
		w.failWith(ctx, d, att, res)
		return
	}

	digest := blake2b.Sum256(data)
	ready, swapped, err := w.repo.CASState(ctx, att.ID, domain.StateProcessing, domain.StateReady, func(a *domain.Attachment) {
		a.DetectedMime = res.MIME
		a.Kind = res.Kind
		a.Metadata = res.Metadata
		a.ContentDigest = hex.EncodeToString(digest[:])
		a.SecurityWarnings = res.SecurityWarnings
	})
	if err != nil {
		w.retryOrDeadLetter(ctx, d, att, apperrors.Transient("persist result", err))
		return
	}
	w.ack(ctx, d)
	if swapped {
		log.Info("Attachment ready", "mime", res.MIME, "warnings", res.SecurityWarnings)
		w.emit(ctx, event.Processed{
			AttachmentID: ready.ID,
			OwnerID:      ready.OwnerID,
			Metadata:     ready.Metadata,
			At:           time.Now().UTC(),
		})
	}
}

func (w *ProcessorWorker) failWith(ctx context.Context, d *contract.Delivery, att domain.Attachment, res validation.Result) {
	failed, swapped, err := w.repo.CASState(ctx, att.ID, domain.StateProcessing, domain.StateFailed, func(a *domain.Attachment) {
		a.DetectedMime = res.MIME
		a.FailureReason = res.FailureReason
		a.SecurityWarnings = res.SecurityWarnings
	})
	if err != nil {
		w.retryOrDeadLetter(ctx, d, att, apperrors.Transient("persist rejection", err))
		return
	}
	w.ack(ctx, d)
	if swapped {
		w.emit(ctx, event.Failed{
			AttachmentID: failed.ID,
			OwnerID:      failed.OwnerID,
			Reason:       failed.FailureReason,
			At:           time.Now().UTC(),
		})
	}
}

func (w *ProcessorWorker) fail(ctx context.Context, d *contract.Delivery, att domain.Attachment, reason string) {
	w.failWith(ctx, d, att, validation.Result{FailureReason: reason})
}

// retryOrDeadLetter nacks with exponential backoff until the attempt budget
// is spent, then marks the attachment FAILED with a reason that operators can
// tell apart from a content rejection.
func (w *ProcessorWorker) retryOrDeadLetter(ctx context.Context, d *contract.Delivery, att domain.Attachment, cause error) {
	if d.Job.AttemptCount < w.maxAttempts {
		delay := w.backoffDelay(d.Job.AttemptCount)
		w.log.Warn("Transient failure, retrying",
			"job_id", d.Job.ID, "attempt", d.Job.AttemptCount, "retry_after", delay, "error", cause)
		if err := w.queue.Nack(ctx, d, delay); err != nil {
			w.log.Error("Nack failed", "job_id", d.Job.ID, "error", err)
		}
		return
	}

	w.log.Error("Retries exhausted, dead-lettering",
		"job_id", d.Job.ID, "attempts", d.Job.AttemptCount, "error", cause)

	reason := fmt.Sprintf("retries exhausted: %v", cause)
	failed, swapped, err := w.repo.CASState(ctx, att.ID, att.State, domain.StateFailed, func(a *domain.Attachment) {
		a.FailureReason = reason
	})
	if err != nil {
		w.log.Error("Dead-letter CAS failed", "attachment_id", att.ID, "error", err)
	}
	w.ack(ctx, d)
	if err == nil && swapped {
		w.emit(ctx, event.Failed{
			AttachmentID: failed.ID,
			OwnerID:      failed.OwnerID,
			Reason:       reason,
			At:           time.Now().UTC(),
		})
	}
}

// backoffDelay doubles per attempt. A backend that cannot report its
// delivery count hands us AttemptCount 0; clamp so the shift never goes
// negative and the first retry waits the base delay.
func (w *ProcessorWorker) backoffDelay(attemptCount int) time.Duration {
	n := attemptCount - 1
	if n < 0 {
		n = 0
	}
	return w.nackBaseDelay * (1 << n)
}

func (w *ProcessorWorker) ack(ctx context.Context, d *contract.Delivery) {
	if err := w.queue.Ack(ctx, d); err != nil {
		w.log.Error("Ack failed", "job_id", d.Job.ID, "error", err)
	}
}

// emit publishes only after the durable state change has happened, never
// before.
func (w *ProcessorWorker) emit(ctx context.Context, e event.LifecycleEvent) {
	select {
	case w.events <- e:
	case <-ctx.Done():
	}
}
