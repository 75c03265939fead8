// Package event consumes category change events and invalidates the cached
// category trees. Cached closures are advisory, so this is a freshness
// optimization: a missed event only leaves a tree stale until its TTL.
package event

import (
	"context"
	"log/slog"

	"github.com/utafrali/catalog-discovery/internal/category"
	pkgkafka "github.com/utafrali/catalog-discovery/pkg/kafka"
)

// Kafka topics for category domain events published by the catalog
// management component.
var (
	TopicCategoryCreated = pkgkafka.Topic("category", "created")
	TopicCategoryUpdated = pkgkafka.Topic("category", "updated")
	TopicCategoryDeleted = pkgkafka.Topic("category", "deleted")
)

// Topics lists every topic the consumer subscribes to.
func Topics() []string {
	return []string{TopicCategoryCreated, TopicCategoryUpdated, TopicCategoryDeleted}
}

// CategoryEventData is the payload carried by category domain events.
type CategoryEventData struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Handle   string  `json:"handle"`
	ParentID *string `json:"parent_id,omitempty"`
}

// Consumer handles category change events for the catalog engine.
type Consumer struct {
	cache  category.Cache
	logger *slog.Logger
}

// NewConsumer creates a category event consumer that flushes the given
// cache on every change.
func NewConsumer(cache category.Cache, logger *slog.Logger) *Consumer {
	return &Consumer{cache: cache, logger: logger}
}

// Handle processes one category event. Any structural change can move a
// subtree, so the whole tree cache is flushed rather than tracking which
// closures a single node participates in.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicCategoryCreated, TopicCategoryUpdated, TopicCategoryDeleted:
		var data CategoryEventData
		if err := event.UnmarshalData(&data); err != nil {
			c.logger.WarnContext(ctx, "malformed category event, flushing cache anyway",
				slog.String("event_type", event.EventType),
				slog.String("event_id", event.EventID),
			)
		}

		c.cache.Flush(ctx)

		c.logger.InfoContext(ctx, "category cache flushed",
			slog.String("event_type", event.EventType),
			slog.String("category_id", data.ID),
		)
		return nil

	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}
