package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"media-vault/contract"
	"media-vault/domain"
	apperrors "media-vault/errors"

	"github.com/nats-io/nats.go"
)

// NatsQueue is the managed backend: a JetStream work-queue stream with a
// durable pull consumer. The server owns the lease (AckWait) and redelivery;
// this side only fetches, acks and naks.
type NatsQueue struct {
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
	log     *slog.Logger
}

type NatsConfig struct {
	Stream        string
	Subject       string
	Durable       string
	LeaseDuration time.Duration
}

func NewNatsQueue(js nats.JetStreamContext, log *slog.Logger, cfg NatsConfig) (*NatsQueue, error) {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("add stream: %w", err)
	}

	sub, err := js.PullSubscribe(cfg.Subject, cfg.Durable, nats.AckWait(cfg.LeaseDuration))
	if err != nil {
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}

	return &NatsQueue{js: js, sub: sub, subject: cfg.Subject, log: log}, nil
}

func (q *NatsQueue) Enqueue(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if _, err := q.js.Publish(q.subject, data); err != nil {
		return apperrors.Transient("enqueue job", err)
	}
	return nil
}

func (q *NatsQueue) Receive(ctx context.Context, maxWait time.Duration) (*contract.Delivery, error) {
	msgs, err := q.sub.Fetch(1, nats.MaxWait(maxWait))
	if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Transient("receive job", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	msg := msgs[0]

	var job domain.Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// Poisoned payload: settle it so it stops redelivering.
		q.log.Error("dropping undecodable job payload", "error", err)
		_ = msg.Term()
		return nil, nil
	}

	if meta, err := msg.Metadata(); err == nil {
		job.AttemptCount = int(meta.NumDelivered)
	} else if job.AttemptCount < 1 {
		// The enqueued payload carries 0; this delivery is at least the first.
		job.AttemptCount = 1
	}

	return &contract.Delivery{Job: job, Receipt: msg}, nil
}

func (q *NatsQueue) Ack(ctx context.Context, d *contract.Delivery) error {
	msg, ok := d.Receipt.(*nats.Msg)
	if !ok {
		return fmt.Errorf("foreign delivery receipt %T", d.Receipt)
	}
	return msg.Ack()
}

func (q *NatsQueue) Nack(ctx context.Context, d *contract.Delivery, retryAfter time.Duration) error {
	msg, ok := d.Receipt.(*nats.Msg)
	if !ok {
		return fmt.Errorf("foreign delivery receipt %T", d.Receipt)
	}
	return msg.NakWithDelay(retryAfter)
}
