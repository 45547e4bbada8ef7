package models

import "time"

type OrderStatus string

const (
	// OrderStatusPending is a bank-transfer order waiting for manual confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCreated is a gateway order waiting for the payment notification.
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
)

type ShippingMethod string

const (
	ShippingNone    ShippingMethod = ""
	ShippingAddress ShippingMethod = "address"
	ShippingPickup  ShippingMethod = "pickup"
)

type PaymentMethod string

const (
	PaymentTransfer PaymentMethod = "transfer"
	PaymentGateway  PaymentMethod = "gateway"
)

// LineItem is a product snapshot taken when the order is created. Later catalog
// edits never change it.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type ShippingDetails struct {
	Name    string `json:"ship_name"`
	DNI     string `json:"ship_dni"`
	Phone   string `json:"ship_phone"`
	Address string `json:"ship_address"`
	City    string `json:"ship_city"`
	Zip     string `json:"ship_zip"`
	Notes   string `json:"ship_notes"`
}

type Order struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyer_id"`
	BuyerEmail        string          `json:"buyer_email,omitempty"`
	BrandID           string          `json:"brand_id"`
	Items             []LineItem      `json:"items"`
	ShippingMethod    ShippingMethod  `json:"shipping_method"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	Shipping          ShippingDetails `json:"shipping"`
	Subtotal          int64           `json:"subtotal"`
	ShippingCost      int64           `json:"shipping_cost"`
	Surcharge         int64           `json:"surcharge"`
	Total             int64           `json:"total"`
	PaidAmount        *int64          `json:"paid_amount,omitempty"`
	Currency          *string         `json:"currency,omitempty"`
	ExternalPaymentID *string         `json:"external_payment_id,omitempty"`
	Status            OrderStatus     `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
}

// CheckoutItem is a cart line as submitted by the client. Price and Name are
// display hints and are never persisted.
type CheckoutItem struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Price     int64  `json:"price"`
	Name      string `json:"name"`
}

type CreatePreferenceRequest struct {
	Brand          string         `json:"brand" binding:"required"`
	Items          []CheckoutItem `json:"items" binding:"dive"`
	ShippingMethod ShippingMethod `json:"shipping_method"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	ShippingDetails
	// Total is what the client displayed. It is compared against the server
	// computation for logging only.
	Total *int64 `json:"total,omitempty"`
}

type QuoteRequest struct {
	Brand          string         `json:"brand" binding:"required"`
	Items          []CheckoutItem `json:"items" binding:"dive"`
	ShippingMethod ShippingMethod `json:"shipping_method"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
}

type OrderEvent struct {
	OrderID           string      `json:"order_id"`
	BrandID           string      `json:"brand_id"`
	BuyerID           string      `json:"buyer_id"`
	Status            OrderStatus `json:"status"`
	Total             int64       `json:"total"`
	ExternalPaymentID string      `json:"external_payment_id,omitempty"`
	ThreadID          string      `json:"thread_id,omitempty"`
	EventType         string      `json:"event_type"` // order_created, order_paid, thread_created, thread_spawn_retry
}

const (
	EventOrderCreated     = "order_created"
	EventOrderPaid        = "order_paid"
	EventThreadCreated    = "thread_created"
	EventThreadSpawnRetry = "thread_spawn_retry"
)
