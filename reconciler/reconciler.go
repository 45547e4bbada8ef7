// Package reconciler turns gateway payment notifications into paid orders.
//
// Notifications arrive at least once, in any order and unauthenticated. Only
// the payment id is taken from them; status, amount and correlation data are
// fetched from the gateway with the brand's own credential. The claim of an
// external payment id is a single atomic write in the order store, so any
// number of concurrent deliveries, on any number of instances, finalize at
// most one order per payment.
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"storefront-svc/database"
	"storefront-svc/gateway"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeUnverifiable Outcome = "unverifiable"
	OutcomeNotApproved  Outcome = "not_approved"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeFinalized    Outcome = "finalized"

	// outcomeDeferred is only reported to metrics. The notification is left
	// for the gateway to redeliver.
	outcomeDeferred = "deferred"
)

type BrandLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Brand, error)
}

type PaymentFetcher interface {
	FetchPayment(ctx context.Context, paymentID, credential string) (gateway.Payment, error)
}

type OrderStore interface {
	FindByExternalPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	ClaimPayment(ctx context.Context, claim database.Claim) (*models.Order, error)
}

type ThreadSpawner interface {
	Spawn(ctx context.Context, order *models.Order) (*models.Thread, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, event models.OrderEvent) error
}

type Reconciler struct {
	brands    BrandLookup
	payments  PaymentFetcher
	orders    OrderStore
	threads   ThreadSpawner
	publisher Publisher
	logger    *zap.Logger
}

// New accepts a nil publisher.
func New(brands BrandLookup, payments PaymentFetcher, orders OrderStore, threads ThreadSpawner, publisher Publisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		brands:    brands,
		payments:  payments,
		orders:    orders,
		threads:   threads,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle resolves one notification. A nil error means the notification reached
// a terminal outcome and must be acknowledged. A non-nil error means nothing
// was changed and the gateway should deliver it again.
func (r *Reconciler) Handle(ctx context.Context, brandSlug string, n models.PaymentNotification) (Outcome, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "reconciler.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("brand.slug", brandSlug),
		attribute.String("payment.id", n.PaymentID),
		attribute.String("notification.topic", n.Topic),
	)

	log := r.logger.With(
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("brand", brandSlug),
		zap.String("payment_id", n.PaymentID),
	)

	outcome, err := r.handle(ctx, log, brandSlug, n)
	if err != nil {
		span.RecordError(err)
		middleware.RecordWebhookOutcome(outcomeDeferred)
		log.Warn("Payment notification deferred", zap.Error(err))
		return "", err
	}

	span.SetAttributes(attribute.String("webhook.outcome", string(outcome)))
	middleware.RecordWebhookOutcome(string(outcome))
	return outcome, nil
}

func (r *Reconciler) handle(ctx context.Context, log *zap.Logger, brandSlug string, n models.PaymentNotification) (Outcome, error) {
	if brandSlug == "" {
		log.Info("Unverifiable notification: no brand")
		return OutcomeUnverifiable, nil
	}

	brand, err := r.brands.GetBySlug(ctx, brandSlug)
	if errors.Is(err, models.ErrBrandNotFound) {
		log.Info("Unverifiable notification: unknown brand")
		return OutcomeUnverifiable, nil
	}
	if err != nil {
		return "", fmt.Errorf("load brand: %w", err)
	}
	if brand.GatewayAccessToken == "" {
		log.Info("Unverifiable notification: brand has no gateway credential")
		return OutcomeUnverifiable, nil
	}

	if n.Topic != models.TopicPayment || n.PaymentID == "" {
		log.Info("Unverifiable notification: not a payment", zap.String("topic", n.Topic))
		return OutcomeUnverifiable, nil
	}

	payment, err := r.payments.FetchPayment(ctx, n.PaymentID, brand.GatewayAccessToken)
	if gateway.IsRejected(err) {
		// The gateway redelivers once the credential is fixed or the payment becomes visible.
		log.Warn("Gateway rejected payment fetch", zap.Error(err))
		return "", fmt.Errorf("fetch payment rejected: %w", err)
	}
	if err != nil {
		return "", fmt.Errorf("fetch payment: %w", err)
	}

	if !payment.Approved() {
		log.Info("Payment not approved", zap.String("status", payment.Status), zap.String("status_detail", payment.StatusDetail))
		return OutcomeNotApproved, nil
	}

	existing, err := r.orders.FindByExternalPaymentID(ctx, n.PaymentID)
	if err == nil {
		log.Info("Duplicate notification", zap.String("order_id", existing.ID))
		return OutcomeDuplicate, nil
	}
	if !errors.Is(err, models.ErrOrderNotFound) {
		return "", fmt.Errorf("look up payment: %w", err)
	}

	ref := models.ParseExternalReference(payment.ExternalReference)
	if ref.BrandID != "" && ref.BrandID != brand.ID {
		log.Warn("Unverifiable notification: payment references another brand", zap.String("reference_brand", ref.BrandID))
		return OutcomeUnverifiable, nil
	}

	order, err := r.orders.ClaimPayment(ctx, database.Claim{
		PaymentID:  n.PaymentID,
		BrandID:    brand.ID,
		OrderID:    ref.OrderID,
		PaidAmount: payment.PaidAmount(),
		Currency:   payment.Currency,
		Fallback:   orderFromPayment(payment, ref),
	})
	if errors.Is(err, models.ErrDuplicatePayment) {
		log.Info("Duplicate notification lost the claim race")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("claim payment: %w", err)
	}

	log.Info("Order paid",
		zap.String("order_id", order.ID),
		zap.Int64("paid_amount", payment.PaidAmount()),
		zap.String("currency", payment.Currency),
	)
	if payment.TransactionAmount != order.Total {
		log.Warn("Paid amount differs from order total",
			zap.String("order_id", order.ID),
			zap.Int64("order_total", order.Total),
			zap.Int64("transaction_amount", payment.TransactionAmount),
		)
	}

	r.publish(ctx, log, order, models.EventOrderPaid)
	r.spawnThread(ctx, log, order)
	return OutcomeFinalized, nil
}

// spawnThread never fails the notification: the order is already paid.
func (r *Reconciler) spawnThread(ctx context.Context, log *zap.Logger, order *models.Order) {
	thread, err := r.threads.Spawn(ctx, order)
	if err == nil {
		log.Info("Order thread opened", zap.String("order_id", order.ID), zap.String("thread_id", thread.ID))
		return
	}

	middleware.RecordThreadSpawnFailure()
	log.Error("Failed to open order thread, scheduling retry", zap.String("order_id", order.ID), zap.Error(err))
	r.publish(ctx, log, order, models.EventThreadSpawnRetry)
}

func (r *Reconciler) publish(ctx context.Context, log *zap.Logger, order *models.Order, eventType string) {
	if r.publisher == nil {
		return
	}
	event := models.OrderEvent{
		OrderID:   order.ID,
		BrandID:   order.BrandID,
		BuyerID:   order.BuyerID,
		Status:    order.Status,
		Total:     order.Total,
		EventType: eventType,
	}
	if order.ExternalPaymentID != nil {
		event.ExternalPaymentID = *order.ExternalPaymentID
	}
	if err := r.publisher.PublishEvent(ctx, event); err != nil {
		log.Warn("Failed to publish order event",
			zap.String("order_id", order.ID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// orderFromPayment rebuilds an order from the gateway's record of the
// payment. It is used when no created order matches the external reference.
func orderFromPayment(p gateway.Payment, ref models.ExternalReference) models.Order {
	o := models.Order{
		BuyerID:       ref.BuyerID,
		BuyerEmail:    p.PayerEmail,
		PaymentMethod: models.PaymentGateway,
	}

	for _, it := range p.Items {
		amount := it.UnitPrice * int64(it.Quantity)
		switch it.ID {
		case gateway.ShippingItemID:
			o.ShippingCost += amount
		case gateway.SurchargeItemID:
			o.Surcharge += amount
		default:
			quantity := it.Quantity
			if quantity < 1 {
				quantity = 1
			}
			o.Items = append(o.Items, models.LineItem{
				ProductID: it.ID,
				Name:      it.Title,
				UnitPrice: it.UnitPrice,
				Quantity:  quantity,
			})
			o.Subtotal += it.UnitPrice * int64(quantity)
		}
	}

	if len(o.Items) == 0 && o.ShippingCost == 0 && o.Surcharge == 0 {
		o.Items = []models.LineItem{{Name: "Payment " + p.ID, UnitPrice: p.PaidAmount(), Quantity: 1}}
		o.Subtotal = p.PaidAmount()
	}
	o.Total = o.Subtotal + o.ShippingCost + o.Surcharge
	return o
}
