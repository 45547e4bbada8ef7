package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storefront-svc/config"
	"storefront-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxSpawnAttempts = 3

type OrderGetter interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type ThreadSpawner interface {
	Spawn(ctx context.Context, order *models.Order) (*models.Thread, error)
}

func InitConsumer(cfg config.Kafka, logger *zap.Logger) (sarama.Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer([]string{cfg.Broker}, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.String("broker", cfg.Broker))
	return consumer, nil
}

// Consumer retries thread creation for paid orders whose thread could not be
// opened while the payment notification was handled.
type Consumer struct {
	orders  OrderGetter
	spawner ThreadSpawner
	logger  *zap.Logger
	backoff time.Duration
}

func NewConsumer(orders OrderGetter, spawner ThreadSpawner, logger *zap.Logger) *Consumer {
	return &Consumer{orders: orders, spawner: spawner, logger: logger, backoff: time.Second}
}

// Start consumes every partition of topic until ctx is done.
func (c *Consumer) Start(ctx context.Context, consumer sarama.Consumer, topic string) error {
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	var wg sync.WaitGroup
	for _, partition := range partitions {
		pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer pc.Close()
			c.consume(ctx, pc)
		}()
	}

	c.logger.Info("Kafka consumer started", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
	wg.Wait()
	return nil
}

func (c *Consumer) consume(ctx context.Context, pc sarama.PartitionConsumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-pc.Messages():
			if !ok {
				return
			}
			if err := c.handleMessageWithRetry(ctx, message); err != nil {
				c.logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err, ok := <-pc.Errors():
			if !ok {
				return
			}
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= maxSpawnAttempts; attempt++ {
		err := c.handleMessage(ctx, message)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxSpawnAttempts {
			backoff := time.Duration(attempt) * c.backoff
			c.logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxSpawnAttempts, lastErr)
}

func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	// Extract trace context from Kafka message headers
	carrier := saramaHeaderCarrierConsumer(message.Headers)
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ProcessOrderEvent")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		// Malformed events are dropped, not retried.
		span.RecordError(err)
		c.logger.Error("Discarding malformed event", zap.Error(err))
		return nil
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("order.id", event.OrderID),
	)

	if event.EventType != models.EventThreadSpawnRetry {
		return nil
	}

	order, err := c.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load order %s: %w", event.OrderID, err)
	}

	thread, err := c.spawner.Spawn(ctx, order)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to spawn thread for order %s: %w", order.ID, err)
	}

	c.logger.Info("Thread spawned on retry",
		zap.String("order_id", order.ID),
		zap.String("thread_id", thread.ID),
	)
	return nil
}

// saramaHeaderCarrierConsumer adapts consumer record headers to
// propagation.TextMapCarrier for extraction.
type saramaHeaderCarrierConsumer []*sarama.RecordHeader

func (c saramaHeaderCarrierConsumer) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaHeaderCarrierConsumer) Set(key, value string) {}

func (c saramaHeaderCarrierConsumer) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
