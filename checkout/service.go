package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"storefront-svc/gateway"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/pricing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BrandLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Brand, error)
}

type Catalog interface {
	ProductsByID(ctx context.Context, brandID string, ids []string) (map[string]models.Product, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, order *models.Order) error
}

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req gateway.PreferenceRequest, credential string) (gateway.Preference, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, event models.OrderEvent) error
}

type Options struct {
	Currency string
	// PublicBaseURL is where the gateway posts notifications.
	PublicBaseURL string
	// StorefrontURL receives the buyer after the gateway checkout.
	StorefrontURL string
}

type Service struct {
	brands    BrandLookup
	catalog   Catalog
	orders    OrderCreator
	gateway   PreferenceCreator
	publisher Publisher
	opts      Options
	logger    *zap.Logger
}

func NewService(brands BrandLookup, catalog Catalog, orders OrderCreator, gw PreferenceCreator, publisher Publisher, opts Options, logger *zap.Logger) *Service {
	return &Service{
		brands:    brands,
		catalog:   catalog,
		orders:    orders,
		gateway:   gw,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

// Result is a persisted checkout. RedirectURL is set for gateway payments.
type Result struct {
	Order       *models.Order
	RedirectURL string
}

// Quote prices a cart the same way CreatePreference does, without persisting
// anything.
func (s *Service) Quote(ctx context.Context, req models.QuoteRequest) (pricing.Totals, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "checkout.Quote")
	defer span.End()

	brand, err := s.brands.GetBySlug(ctx, req.Brand)
	if err != nil {
		return pricing.Totals{}, err
	}

	items, err := s.snapshotItems(ctx, brand, req.Items)
	if err != nil {
		return pricing.Totals{}, err
	}
	if err := validateShipping(brand, req.ShippingMethod, nil); err != nil {
		return pricing.Totals{}, err
	}
	if req.PaymentMethod != models.PaymentTransfer && req.PaymentMethod != models.PaymentGateway {
		return pricing.Totals{}, models.NewValidationError(models.ErrInvalidPayment, "unknown payment method")
	}

	return computeTotals(items, req.ShippingMethod, req.PaymentMethod, brand)
}

// CreatePreference validates the cart against the catalog, prices it, stores
// the order and, for gateway payments, asks the gateway for a checkout
// preference. When the gateway fails the order stays in created status and
// the buyer may check out again.
func (s *Service) CreatePreference(ctx context.Context, buyer models.Buyer, req models.CreatePreferenceRequest) (*Result, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "checkout.CreatePreference")
	defer span.End()
	span.SetAttributes(
		attribute.String("brand.slug", req.Brand),
		attribute.String("payment.method", string(req.PaymentMethod)),
	)

	brand, err := s.brands.GetBySlug(ctx, req.Brand)
	if err != nil {
		return nil, err
	}

	items, err := s.snapshotItems(ctx, brand, req.Items)
	if err != nil {
		return nil, err
	}
	if err := validateShipping(brand, req.ShippingMethod, &req.ShippingDetails); err != nil {
		return nil, err
	}
	if err := validatePayment(brand, req.PaymentMethod, req.ShippingDetails); err != nil {
		return nil, err
	}

	totals, err := computeTotals(items, req.ShippingMethod, req.PaymentMethod, brand)
	if err != nil {
		return nil, err
	}
	if req.Total != nil && *req.Total != totals.Total {
		s.logger.Warn("client total mismatch",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("brand", brand.Slug),
			zap.String("buyer_id", buyer.ID),
			zap.Int64("client_total", *req.Total),
			zap.Int64("server_total", totals.Total),
		)
	}

	status := models.OrderStatusPending
	if req.PaymentMethod == models.PaymentGateway {
		status = models.OrderStatusCreated
	}

	order := &models.Order{
		ID:             uuid.NewString(),
		BuyerID:        buyer.ID,
		BuyerEmail:     buyer.Email,
		BrandID:        brand.ID,
		Items:          items,
		ShippingMethod: req.ShippingMethod,
		PaymentMethod:  req.PaymentMethod,
		Shipping:       req.ShippingDetails,
		Subtotal:       totals.Subtotal,
		ShippingCost:   totals.ShippingCost,
		Surcharge:      totals.Surcharge,
		Total:          totals.Total,
		Status:         status,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to store order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	middleware.RecordOrderCreated(string(order.PaymentMethod))

	s.publish(ctx, order, models.EventOrderCreated)

	s.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", order.ID),
		zap.String("brand", brand.Slug),
		zap.String("status", string(order.Status)),
		zap.Int64("total", order.Total),
	)

	result := &Result{Order: order}
	if req.PaymentMethod != models.PaymentGateway {
		return result, nil
	}

	pref, err := s.gateway.CreatePreference(ctx, s.preferenceRequest(brand, buyer, order), brand.GatewayAccessToken)
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("order %s: %w", order.ID, err)
	}
	result.RedirectURL = pref.RedirectURL
	return result, nil
}

// snapshotItems resolves cart lines against the brand catalog. Client prices
// and names are ignored.
func (s *Service) snapshotItems(ctx context.Context, brand *models.Brand, cart []models.CheckoutItem) ([]models.LineItem, error) {
	if len(cart) == 0 {
		return nil, models.NewValidationError(models.ErrInvalidCart, "cart is empty")
	}

	ids := make([]string, 0, len(cart))
	seen := make(map[string]bool, len(cart))
	for _, item := range cart {
		if item.Quantity < 1 {
			return nil, models.NewValidationError(models.ErrInvalidCart, fmt.Sprintf("invalid quantity for product %q", item.ProductID))
		}
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.catalog.ProductsByID(ctx, brand.ID, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.LineItem, 0, len(cart))
	for _, item := range cart {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, models.NewValidationError(models.ErrInvalidCart, fmt.Sprintf("product %q is not available", item.ProductID))
		}
		items = append(items, models.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
		})
	}
	return items, nil
}

// validateShipping checks the address fields only when details is non-nil.
func validateShipping(brand *models.Brand, method models.ShippingMethod, details *models.ShippingDetails) error {
	if method == models.ShippingNone {
		return models.NewValidationError(models.ErrInvalidShipping, "shipping method is required")
	}
	if method != models.ShippingAddress && method != models.ShippingPickup {
		return models.NewValidationError(models.ErrInvalidShipping, fmt.Sprintf("unknown shipping method %q", method))
	}
	if !brand.Offers(method) {
		return models.NewValidationError(models.ErrInvalidShipping, fmt.Sprintf("brand does not offer %s shipping", method))
	}
	if details != nil && method == models.ShippingAddress && strings.TrimSpace(details.Address) == "" {
		return models.NewValidationError(models.ErrInvalidShipping, "shipping address is required")
	}
	return nil
}

func validatePayment(brand *models.Brand, method models.PaymentMethod, details models.ShippingDetails) error {
	switch method {
	case models.PaymentTransfer:
		if !brand.TransferEnabled {
			return models.NewValidationError(models.ErrInvalidPayment, "brand does not accept bank transfers")
		}
		if strings.TrimSpace(details.Name) == "" || strings.TrimSpace(details.DNI) == "" {
			return models.NewValidationError(models.ErrInvalidPayment, "name and DNI are required for bank transfers")
		}
	case models.PaymentGateway:
		if brand.GatewayAccessToken == "" {
			return models.NewValidationError(models.ErrInvalidPayment, "brand does not accept gateway payments")
		}
	default:
		return models.NewValidationError(models.ErrInvalidPayment, fmt.Sprintf("unknown payment method %q", method))
	}
	return nil
}

func computeTotals(items []models.LineItem, shipping models.ShippingMethod, payment models.PaymentMethod, brand *models.Brand) (pricing.Totals, error) {
	totals, err := pricing.Compute(pricing.LinesFromItems(items), shipping, payment, brand.BrandPaymentConfig)
	if errors.Is(err, pricing.ErrInvalidLine) {
		return pricing.Totals{}, models.NewValidationError(models.ErrInvalidCart, err.Error())
	}
	return totals, err
}

func (s *Service) preferenceRequest(brand *models.Brand, buyer models.Buyer, order *models.Order) gateway.PreferenceRequest {
	items := make([]gateway.Item, 0, len(order.Items)+2)
	for _, it := range order.Items {
		items = append(items, gateway.Item{
			ID:        it.ProductID,
			Title:     it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	if order.ShippingCost > 0 {
		items = append(items, gateway.Item{ID: gateway.ShippingItemID, Title: "Shipping", Quantity: 1, UnitPrice: order.ShippingCost})
	}
	if order.Surcharge > 0 {
		items = append(items, gateway.Item{ID: gateway.SurchargeItemID, Title: "Payment fee", Quantity: 1, UnitPrice: order.Surcharge})
	}

	ref := models.ExternalReference{BrandID: brand.ID, OrderID: order.ID, BuyerID: buyer.ID}
	orderQuery := "?order=" + url.QueryEscape(order.ID)

	return gateway.PreferenceRequest{
		Items:             items,
		Currency:          s.opts.Currency,
		PayerEmail:        buyer.Email,
		ExternalReference: ref.String(),
		NotificationURL:   s.opts.PublicBaseURL + "/webhooks/gateway?brand=" + url.QueryEscape(brand.Slug),
		BackURLs: gateway.BackURLs{
			Success: s.opts.StorefrontURL + "/checkout/success" + orderQuery,
			Failure: s.opts.StorefrontURL + "/checkout/failure" + orderQuery,
			Pending: s.opts.StorefrontURL + "/checkout/pending" + orderQuery,
		},
	}
}

func (s *Service) publish(ctx context.Context, order *models.Order, eventType string) {
	if s.publisher == nil {
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
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", order.ID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
