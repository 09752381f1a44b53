package queue

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"media-vault/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, lease time.Duration) *BadgerQueue {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerQueue(db, slog.Default(), lease)
}

func TestBadgerQueue_EnqueueReceiveAck(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	job := domain.NewJob(uuid.New())
	req.NoError(q.Enqueue(ctx, job))

	d, err := q.Receive(ctx, time.Second)
	req.NoError(err)
	req.NotNil(d)
	req.Equal(job.ID, d.Job.ID)
	req.Equal(job.AttachmentID, d.Job.AttachmentID)
	req.Equal(1, d.Job.AttemptCount)

	req.NoError(q.Ack(ctx, d))

	depth, err := q.Depth()
	req.NoError(err)
	req.Zero(depth)
}

func TestBadgerQueue_EmptyReceive(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t, time.Minute)

	// Idle queue: (nil, nil), distinguishable from a failure.
	d, err := q.Receive(context.Background(), 100*time.Millisecond)
	req.NoError(err)
	req.Nil(d)
}

func TestBadgerQueue_NackRedeliversAfterDelay(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	req.NoError(q.Enqueue(ctx, domain.NewJob(uuid.New())))

	d, err := q.Receive(ctx, time.Second)
	req.NoError(err)
	req.NotNil(d)

	req.NoError(q.Nack(ctx, d, 150*time.Millisecond))

	// Not visible before the delay passes.
	early, err := q.Receive(ctx, 30*time.Millisecond)
	req.NoError(err)
	req.Nil(early)

	again, err := q.Receive(ctx, time.Second)
	req.NoError(err)
	req.NotNil(again)
	req.Equal(d.Job.ID, again.Job.ID)
	req.Equal(2, again.Job.AttemptCount)
}

func TestBadgerQueue_LeaseExpiryRedelivers(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t, 100*time.Millisecond)
	ctx := context.Background()

	req.NoError(q.Enqueue(ctx, domain.NewJob(uuid.New())))

	first, err := q.Receive(ctx, time.Second)
	req.NoError(err)
	req.NotNil(first)

	// Consumer dies without settling: after the lease lapses the job comes
	// back. The attempt counter was bumped when the lease was taken, so the
	// redelivery bumps it again.
	time.Sleep(150 * time.Millisecond)

	second, err := q.Receive(ctx, time.Second)
	req.NoError(err)
	req.NotNil(second)
	req.Equal(first.Job.ID, second.Job.ID)
	req.Equal(2, second.Job.AttemptCount)
}

func TestBadgerQueue_AtLeastOnceNeverLoses(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	jobs := map[uuid.UUID]struct{}{}
	for i := 0; i < 5; i++ {
		job := domain.NewJob(uuid.New())
		jobs[job.ID] = struct{}{}
		req.NoError(q.Enqueue(ctx, job))
	}

	for i := 0; i < 5; i++ {
		d, err := q.Receive(ctx, time.Second)
		req.NoError(err)
		req.NotNil(d)
		_, known := jobs[d.Job.ID]
		req.True(known)
		delete(jobs, d.Job.ID)
		req.NoError(q.Ack(ctx, d))
	}
	req.Empty(jobs)
}
