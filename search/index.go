package search

import (
	"context"
	"fmt"
	"log/slog"

	"media-vault/domain"

	"github.com/blugelabs/bluge"
)

// Index maintains a full-text index over READY attachments so owners can
// find their uploads by filename or type. Fed by the search sink on
// media.processed events; never part of the validation path.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

func (i *Index) IndexAttachment(att domain.Attachment) error {
	doc := bluge.NewDocument(att.ID.String()).
		AddField(bluge.NewTextField("filename", att.FileName).StoreValue()).
		AddField(bluge.NewKeywordField("owner", att.OwnerID)).
		AddField(bluge.NewKeywordField("mime", string(att.DetectedMime)).StoreValue()).
		AddField(bluge.NewKeywordField("kind", string(att.Kind)).StoreValue())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index attachment %s: %w", att.ID, err)
	}
	return nil
}

func (i *Index) Remove(id string) error {
	return i.writer.Delete(bluge.Identifier(id))
}

// Search returns attachment IDs matching terms, restricted to ownerID.
// The owner clause is a MUST: results can never cross user boundaries.
func (i *Index) Search(ctx context.Context, ownerID, terms string, limit int) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("search reader: %w", err)
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(ownerID).SetField("owner")).
		AddMust(bluge.NewMatchQuery(terms).SetField("filename"))

	it, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var ids []string
	for {
		match, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("search iterate: %w", err)
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
