package workers

import (
	"context"
	"log/slog"
	"time"

	"media-vault/contract"
	"media-vault/domain"
	"media-vault/domain/event"
)

var _ contract.Worker = (*ReaperWorker)(nil)

// ReaperWorker sweeps the two leaks the happy path can leave behind:
// uploads that were granted but never confirmed (or whose job vanished), and
// soft-deleted attachments past their retention window. It operates only on
// PENDING, UPLOADED and DELETED records, a state subset disjoint from the
// processor's, so the two need no mutual exclusion.
type ReaperWorker struct {
	log       *slog.Logger
	repo      contract.AttachmentRepository
	blobs     contract.BlobStore
	events    chan event.LifecycleEvent
	interval  time.Duration
	uploadTTL time.Duration
	retention time.Duration
	batchSize int
}

func NewReaperWorker(
	log *slog.Logger,
	repo contract.AttachmentRepository,
	blobs contract.BlobStore,
	events chan event.LifecycleEvent,
	interval time.Duration,
	uploadTTL time.Duration,
	retention time.Duration,
	batchSize int,
) *ReaperWorker {
	return &ReaperWorker{
		log:       log,
		repo:      repo,
		blobs:     blobs,
		events:    events,
		interval:  interval,
		uploadTTL: uploadTTL,
		retention: retention,
		batchSize: batchSize,
	}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one full pass. Exported so operators (and tests) can trigger a
// sweep without waiting for the ticker.
func (w *ReaperWorker) Sweep(ctx context.Context) {
	w.reapAbandoned(ctx, domain.StatePending)
	w.reapAbandoned(ctx, domain.StateUploaded)
	w.purgeDeleted(ctx)
}

// reapAbandoned fails attachments stuck before processing past the TTL and
// removes any partial object they may have written.
func (w *ReaperWorker) reapAbandoned(ctx context.Context, state domain.State) {
	cutoff := time.Now().Add(-w.uploadTTL)
	stale, err := w.repo.ListByStateOlderThan(ctx, state, cutoff, w.batchSize)
	if err != nil {
		w.log.Error("Stale listing failed", "state", state, "error", err)
		return
	}

	for _, att := range stale {
		failed, swapped, err := w.repo.CASState(ctx, att.ID, state, domain.StateFailed, func(a *domain.Attachment) {
			a.FailureReason = "upload abandoned"
		})
		if err != nil {
			w.log.Error("Abandon CAS failed", "attachment_id", att.ID, "error", err)
			continue
		}
		if !swapped {
			// Confirmed or claimed between listing and CAS; leave it alone.
			continue
		}

		w.log.Info("Reaped abandoned upload", "attachment_id", att.ID, "was", state)

		if att.ObjectKey != "" {
			if err := w.blobs.DeleteObject(ctx, att.ObjectKey); err != nil {
				w.log.Warn("Orphan object delete failed", "key", att.ObjectKey, "error", err)
			}
		}

		select {
		case w.events <- event.Failed{
			AttachmentID: failed.ID,
			OwnerID:      failed.OwnerID,
			Reason:       failed.FailureReason,
			At:           time.Now().UTC(),
		}:
		case <-ctx.Done():
			return
		}
	}
}

// purgeDeleted hard-deletes soft-deleted attachments past retention,
// removing the stored object first so a purge crash re-runs cleanly.
func (w *ReaperWorker) purgeDeleted(ctx context.Context) {
	cutoff := time.Now().Add(-w.retention)
	expired, err := w.repo.ListByStateOlderThan(ctx, domain.StateDeleted, cutoff, w.batchSize)
	if err != nil {
		w.log.Error("Retention listing failed", "error", err)
		return
	}

	for _, att := range expired {
		if att.ObjectKey != "" {
			if err := w.blobs.DeleteObject(ctx, att.ObjectKey); err != nil {
				w.log.Warn("Retention object delete failed, will retry next sweep",
					"key", att.ObjectKey, "error", err)
				continue
			}
		}
		if err := w.repo.HardDelete(ctx, att.ID); err != nil {
			w.log.Error("Hard delete failed", "attachment_id", att.ID, "error", err)
			continue
		}
		w.log.Info("Purged deleted attachment", "attachment_id", att.ID)
	}
}
