package workers

import (
	"context"
	"log/slog"
	"time"

	"media-vault/contract"
	"media-vault/domain/event"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout drains the lifecycle event channel and broadcasts each event to
// the permanent sinks (audit log, search index, export) and to the owner's
// live sessions via the notifier.
//
// Best-effort fan-out: no delivery, ordering or retry guarantees. Events feed
// observability and progress, never core state; the attachment record is the
// durable truth.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.LifecycleEvent
	sinks       []contract.EventSink
	notifier    contract.Notifier
	sinkTimeout time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	events chan event.LifecycleEvent,
	notifier contract.Notifier,
	sinkTimeout time.Duration,
) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      events,
		notifier:    notifier,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.fanout(ctx, evt)
		}
	}
}

func (w *EventFanout) fanout(ctx context.Context, evt event.LifecycleEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink delivery failed", "event", evt.Name(), "error", err)
		}
		cancel()
	}

	// Progress delivery is always scoped to the owner; no broadcast exists.
	w.notifier.Publish(ctx, evt.Owner(), evt)
}
