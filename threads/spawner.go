// Package threads opens the buyer/brand conversation thread of a paid order.
// Message delivery itself belongs to the external messaging facility, which
// learns about new threads from thread_created events.
package threads

import (
	"context"
	"fmt"

	"storefront-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Store interface {
	CreateThread(ctx context.Context, order *models.Order) (*models.Thread, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, event models.OrderEvent) error
}

type Spawner struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
}

// NewSpawner accepts a nil publisher, in which case no events are emitted.
func NewSpawner(store Store, publisher Publisher, logger *zap.Logger) *Spawner {
	return &Spawner{store: store, publisher: publisher, logger: logger}
}

// Spawn is idempotent per order: calling it again returns the thread that
// already exists.
func (s *Spawner) Spawn(ctx context.Context, order *models.Order) (*models.Thread, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "threads.Spawn")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.ID))

	if order.Status != models.OrderStatusPaid {
		return nil, fmt.Errorf("order %s is %s, threads are opened for paid orders only", order.ID, order.Status)
	}

	thread, err := s.store.CreateThread(ctx, order)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.publisher != nil {
		event := models.OrderEvent{
			OrderID:   order.ID,
			BrandID:   order.BrandID,
			BuyerID:   order.BuyerID,
			Status:    order.Status,
			Total:     order.Total,
			ThreadID:  thread.ID,
			EventType: models.EventThreadCreated,
		}
		if order.ExternalPaymentID != nil {
			event.ExternalPaymentID = *order.ExternalPaymentID
		}
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			s.logger.Warn("Failed to publish thread event",
				zap.String("order_id", order.ID),
				zap.String("thread_id", thread.ID),
				zap.Error(err),
			)
		}
	}

	return thread, nil
}
