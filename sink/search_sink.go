package sink

import (
	"context"
	"log/slog"

	"media-vault/contract"
	"media-vault/domain/event"
	"media-vault/search"
)

var _ contract.EventSink = (*SearchSink)(nil)

// SearchSink keeps the attachment search index in step with the lifecycle:
// processed attachments become searchable, deleted ones disappear.
type SearchSink struct {
	log   *slog.Logger
	repo  contract.AttachmentRepository
	index *search.Index
}

func NewSearchSink(log *slog.Logger, repo contract.AttachmentRepository, index *search.Index) *SearchSink {
	return &SearchSink{log: log, repo: repo, index: index}
}

func (s *SearchSink) Consume(ctx context.Context, e event.LifecycleEvent) error {
	switch e.(type) {
	case event.Processed:
		att, err := s.repo.Get(ctx, e.Ref())
		if err != nil {
			return err
		}
		return s.index.IndexAttachment(att)
	case event.Deleted:
		return s.index.Remove(e.Ref().String())
	default:
		return nil
	}
}
