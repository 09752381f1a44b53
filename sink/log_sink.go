package sink

import (
	"context"
	"log/slog"

	"media-vault/contract"
	"media-vault/domain/event"
)

var _ contract.EventSink = (*LogSink)(nil)

// LogSink writes every lifecycle event to the structured log, giving a
// minimal audit trail even when no export is configured.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Consume(ctx context.Context, e event.LifecycleEvent) error {
	s.log.Info("Lifecycle event",
		"event", e.Name(), "attachment_id", e.Ref(), "owner", e.Owner())
	return nil
}
