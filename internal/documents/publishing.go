package documents

import (
	"context"
	"log/slog"
)

// Change is emitted after a successful mutation.
type Change struct {
	Kind   string `json:"kind"` // created, updated or deleted
	Record Record `json:"record"`
}

// Publisher receives document changes. Publishing is best effort.
type Publisher interface {
	PublishDocumentChange(ctx context.Context, change Change) error
}

// PublishingStore notifies a Publisher after each successful mutation.
type PublishingStore struct {
	Store
	pub    Publisher
	logger *slog.Logger
}

func NewPublishingStore(inner Store, pub Publisher, logger *slog.Logger) Store {
	if pub == nil {
		return inner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishingStore{Store: inner, pub: pub, logger: logger}
}

func (s *PublishingStore) Insert(ctx context.Context, title, content string) (Record, error) {
	r, err := s.Store.Insert(ctx, title, content)
	if err == nil {
		s.publish(ctx, Change{Kind: "created", Record: r})
	}
	return r, err
}

func (s *PublishingStore) Update(ctx context.Context, id int64, content string) (Record, error) {
	r, err := s.Store.Update(ctx, id, content)
	if err == nil {
		s.publish(ctx, Change{Kind: "updated", Record: r})
	}
	return r, err
}

func (s *PublishingStore) Delete(ctx context.Context, id int64) error {
	err := s.Store.Delete(ctx, id)
	if err == nil {
		s.publish(ctx, Change{Kind: "deleted", Record: Record{ID: id}})
	}
	return err
}

func (s *PublishingStore) publish(ctx context.Context, change Change) {
	if err := s.pub.PublishDocumentChange(ctx, change); err != nil {
		s.logger.Warn("document change publish failed",
			slog.String("kind", change.Kind),
			slog.Int64("id", change.Record.ID),
			slog.String("error", err.Error()),
		)
	}
}
