package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"media-vault/domain"
	apperrors "media-vault/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// AttachmentRepository persists attachments in BadgerDB.
//
// Key layout:
//
//	att:id:<uuid>                               -> JSON record
//	att:upload:<uploadID>                       -> record id
//	att:state:<STATE>:<updatedAtNano 19d>:<id>  -> empty (reaper index)
//
// The zero-padded nanosecond segment keeps the state index in chronological
// order, so the reaper reads stale entries first and can stop early.
type AttachmentRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAttachmentRepository(db *badger.DB, log *slog.Logger) *AttachmentRepository {
	return &AttachmentRepository{db: db, log: log}
}

func recordKey(id uuid.UUID) []byte {
	return []byte("att:id:" + id.String())
}

func uploadKey(uploadID string) []byte {
	return []byte("att:upload:" + uploadID)
}

func stateKey(state domain.State, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("att:state:%s:%019d:%s", state, at.UnixNano(), id))
}

func (r *AttachmentRepository) Create(ctx context.Context, att *domain.Attachment) error {
	att.CreatedAt = att.CreatedAt.UTC()
	att.UpdatedAt = att.CreatedAt

	data, err := json.Marshal(att)
	if err != nil {
		return fmt.Errorf("marshal attachment: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(recordKey(att.ID), data); err != nil {
			return err
		}
		if err := txn.Set(uploadKey(att.UploadID), []byte(att.ID.String())); err != nil {
			return err
		}
		return txn.Set(stateKey(att.State, att.UpdatedAt, att.ID), nil)
	})
}

func (r *AttachmentRepository) Get(ctx context.Context, id uuid.UUID) (domain.Attachment, error) {
	var att domain.Attachment
	err := r.db.View(func(txn *badger.Txn) error {
		loaded, err := loadRecord(txn, id)
		if err != nil {
			return err
		}
		att = loaded
		return nil
	})
	return att, err
}

func (r *AttachmentRepository) GetByUploadID(ctx context.Context, uploadID string) (domain.Attachment, error) {
	var att domain.Attachment
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(uploadKey(uploadID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}

		var id uuid.UUID
		if err := item.Value(func(v []byte) error {
			parsed, err := uuid.Parse(string(v))
			id = parsed
			return err
		}); err != nil {
			return err
		}

		loaded, err := loadRecord(txn, id)
		if err != nil {
			return err
		}
		att = loaded
		return nil
	})
	return att, err
}

// CASState is the single mutation primitive of the record store. The state
// comparison, the mutate callback and the index move all happen inside one
// Badger transaction, which gives the compare-and-swap its atomicity.
func (r *AttachmentRepository) CASState(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.State,
	mutate func(*domain.Attachment),
) (domain.Attachment, bool, error) {
	if !domain.CanTransition(expected, next) {
		return domain.Attachment{}, false, fmt.Errorf("illegal transition %s -> %s", expected, next)
	}

	for {
		var (
			att     domain.Attachment
			swapped bool
		)
		err := r.db.Update(func(txn *badger.Txn) error {
			loaded, err := loadRecord(txn, id)
			if err != nil {
				return err
			}
			att = loaded

			if att.State != expected {
				// Someone else won the race. Not an error: the caller inspects
				// the returned record and the swapped flag.
				return nil
			}

			previousKey := stateKey(att.State, att.UpdatedAt, att.ID)

			att.State = next
			att.UpdatedAt = time.Now().UTC()
			if mutate != nil {
				mutate(&att)
			}

			data, err := json.Marshal(&att)
			if err != nil {
				return fmt.Errorf("marshal attachment: %w", err)
			}
			if err := txn.Set(recordKey(att.ID), data); err != nil {
				return err
			}
			if err := txn.Delete(previousKey); err != nil {
				return err
			}
			if err := txn.Set(stateKey(att.State, att.UpdatedAt, att.ID), nil); err != nil {
				return err
			}

			swapped = true
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			// Badger transactions are optimistic: a concurrent writer on the
			// same record aborts this one. Re-run against the new version;
			// the state comparison then settles who actually swapped.
			continue
		}
		if err != nil {
			return domain.Attachment{}, false, err
		}
		return att, swapped, nil
	}
}

// ListByStateOlderThan returns up to limit attachments sitting in state with
// UpdatedAt at or before cutoff. The index is time-ordered, so iteration
// stops at the first entry newer than the cutoff.
func (r *AttachmentRepository) ListByStateOlderThan(
	ctx context.Context,
	state domain.State,
	cutoff time.Time,
	limit int,
) ([]domain.Attachment, error) {
	prefix := []byte(fmt.Sprintf("att:state:%s:", state))
	boundary := []byte(fmt.Sprintf("att:state:%s:%019d", state, cutoff.UnixNano()))

	var result []domain.Attachment
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(result) < limit; it.Next() {
			key := it.Item().Key()
			if string(key) > string(boundary)+"\xff" {
				break
			}

			id, err := idFromStateKey(key)
			if err != nil {
				r.log.Warn("skipping malformed state index key", "key", string(key), "error", err)
				continue
			}
			att, err := loadRecord(txn, id)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			result = append(result, att)
		}
		return nil
	})
	return result, err
}

// HardDelete removes the record and all index entries. Reaper-only: soft
// deletion goes through CASState to DELETED.
func (r *AttachmentRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		att, err := loadRecord(txn, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := txn.Delete(stateKey(att.State, att.UpdatedAt, att.ID)); err != nil {
			return err
		}
		if err := txn.Delete(uploadKey(att.UploadID)); err != nil {
			return err
		}
		return txn.Delete(recordKey(id))
	})
}

func loadRecord(txn *badger.Txn, id uuid.UUID) (domain.Attachment, error) {
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Attachment{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Attachment{}, err
	}

	var att domain.Attachment
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &att)
	}); err != nil {
		return domain.Attachment{}, fmt.Errorf("unmarshal attachment: %w", err)
	}
	return att, nil
}

func idFromStateKey(key []byte) (uuid.UUID, error) {
	s := string(key)
	if len(s) < 36 {
		return uuid.Nil, fmt.Errorf("state key too short")
	}
	return uuid.Parse(s[len(s)-36:])
}
