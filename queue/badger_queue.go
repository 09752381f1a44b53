package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"media-vault/contract"
	"media-vault/domain"

	"github.com/dgraph-io/badger/v4"
)

const pollInterval = 50 * time.Millisecond

// BadgerQueue is the broker-less backend: jobs live in BadgerDB under
// time-ordered keys and move between two prefixes.
//
//	job:pending:<visibleAtNano 19d>:<jobID> -> JSON job
//	job:leased:<leaseExpiryNano 19d>:<jobID> -> JSON job
//
// A pending key becomes receivable once its timestamp passes (nack delays are
// just pending keys in the future). Every Receive first requeues expired
// leases, which is what makes delivery at-least-once across worker crashes.
type BadgerQueue struct {
	db            *badger.DB
	log           *slog.Logger
	leaseDuration time.Duration
}

func NewBadgerQueue(db *badger.DB, log *slog.Logger, leaseDuration time.Duration) *BadgerQueue {
	return &BadgerQueue{db: db, log: log, leaseDuration: leaseDuration}
}

func pendingKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("job:pending:%019d:%s", visibleAt.UnixNano(), id))
}

func leasedKey(expiresAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("job:leased:%019d:%s", expiresAt.UnixNano(), id))
}

func (q *BadgerQueue) Enqueue(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(job.EnqueuedAt, job.ID.String()), data)
	})
}

// Receive polls until a job is visible or maxWait elapses. Returns (nil, nil)
// on an empty queue so callers can distinguish idleness from failure.
func (q *BadgerQueue) Receive(ctx context.Context, maxWait time.Duration) (*contract.Delivery, error) {
	deadline := time.Now().Add(maxWait)
	for {
		d, err := q.tryReceive()
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (q *BadgerQueue) tryReceive() (*contract.Delivery, error) {
	var delivery *contract.Delivery

	err := q.db.Update(func(txn *badger.Txn) error {
		if err := q.requeueExpired(txn); err != nil {
			return err
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		now := time.Now()
		prefix := []byte("job:pending:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			visibleAt, _, err := parseQueueKey(item.Key())
			if err != nil {
				q.log.Warn("dropping malformed queue key", "key", string(item.Key()), "error", err)
				continue
			}
			if visibleAt.After(now) {
				// Keys are time-ordered: nothing later is visible either.
				return nil
			}

			var job domain.Job
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &job)
			}); err != nil {
				return fmt.Errorf("unmarshal job: %w", err)
			}

			job.AttemptCount++
			job.LeaseExpiresAt = now.Add(q.leaseDuration)

			data, err := json.Marshal(job)
			if err != nil {
				return fmt.Errorf("marshal job: %w", err)
			}

			lk := leasedKey(job.LeaseExpiresAt, job.ID.String())
			if err := txn.Delete(item.KeyCopy(nil)); err != nil {
				return err
			}
			if err := txn.Set(lk, data); err != nil {
				return err
			}

			delivery = &contract.Delivery{Job: job, Receipt: string(lk)}
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// requeueExpired moves jobs whose lease has lapsed back to pending. The
// attempt counter was already bumped when the lease was taken.
func (q *BadgerQueue) requeueExpired(txn *badger.Txn) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	now := time.Now()
	prefix := []byte("job:leased:")

	type move struct {
		oldKey []byte
		newKey []byte
		data   []byte
	}
	var moves []move

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		expiresAt, id, err := parseQueueKey(item.Key())
		if err != nil {
			continue
		}
		if expiresAt.After(now) {
			break
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		moves = append(moves, move{
			oldKey: item.KeyCopy(nil),
			newKey: pendingKey(now, id),
			data:   data,
		})
	}

	for _, m := range moves {
		q.log.Warn("requeueing job with expired lease", "key", string(m.oldKey))
		if err := txn.Delete(m.oldKey); err != nil {
			return err
		}
		if err := txn.Set(m.newKey, m.data); err != nil {
			return err
		}
	}
	return nil
}

func (q *BadgerQueue) Ack(ctx context.Context, d *contract.Delivery) error {
	key, ok := d.Receipt.(string)
	if !ok {
		return fmt.Errorf("foreign delivery receipt %T", d.Receipt)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (q *BadgerQueue) Nack(ctx context.Context, d *contract.Delivery, retryAfter time.Duration) error {
	key, ok := d.Receipt.(string)
	if !ok {
		return fmt.Errorf("foreign delivery receipt %T", d.Receipt)
	}
	data, err := json.Marshal(d.Job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		return txn.Set(pendingKey(time.Now().Add(retryAfter), d.Job.ID.String()), data)
	})
}

// Depth counts pending plus leased jobs. Used by tests and the inspect tool.
func (q *BadgerQueue) Depth() (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("job:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func parseQueueKey(key []byte) (time.Time, string, error) {
	parts := strings.SplitN(string(key), ":", 4)
	if len(parts) != 4 {
		return time.Time{}, "", fmt.Errorf("malformed queue key")
	}
	nanos, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed queue key timestamp: %w", err)
	}
	return time.Unix(0, nanos), parts[3], nil
}
