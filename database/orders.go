package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-svc/models"

	"github.com/google/uuid"
)

const orderColumns = `id, buyer_id, buyer_email, brand_id, items, shipping_method, payment_method,
	subtotal, shipping_cost, surcharge, total, paid_amount, currency, external_payment_id, status,
	ship_name, ship_dni, ship_phone, ship_address, ship_city, ship_zip, ship_notes,
	created_at, updated_at, paid_at`

type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// CreateOrder inserts an order that is not yet paid. CreatedAt and UpdatedAt
// are filled from the database.
func (s *OrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.Status == models.OrderStatusPaid {
		return errors.New("create order: paid orders are only written by ClaimPayment")
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("create order: failed to marshal items: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO orders (id, buyer_id, buyer_email, brand_id, items, shipping_method, payment_method,
			subtotal, shipping_cost, surcharge, total, status,
			ship_name, ship_dni, ship_phone, ship_address, ship_city, ship_zip, ship_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at`,
		order.ID, order.BuyerID, order.BuyerEmail, order.BrandID, items,
		string(order.ShippingMethod), string(order.PaymentMethod),
		order.Subtotal, order.ShippingCost, order.Surcharge, order.Total, string(order.Status),
		order.Shipping.Name, order.Shipping.DNI, order.Shipping.Phone, order.Shipping.Address,
		order.Shipping.City, order.Shipping.Zip, order.Shipping.Notes,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrOrderNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	return scanOrderOrNotFound(row)
}

// GetOrderForBuyer only returns the order if it belongs to buyerID.
func (s *OrderStore) GetOrderForBuyer(ctx context.Context, id, buyerID string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrOrderNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 AND buyer_id = $2", id, buyerID)
	return scanOrderOrNotFound(row)
}

func (s *OrderStore) FindByExternalPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE external_payment_id = $1", paymentID)
	return scanOrderOrNotFound(row)
}

// Claim describes an approved external payment to be recorded against exactly
// one order.
type Claim struct {
	PaymentID  string
	BrandID    string
	OrderID    string
	PaidAmount int64
	Currency   string
	// Fallback is inserted as a new paid order when no created order can be
	// transitioned, e.g. the reference carries no order id.
	Fallback models.Order
}

// ClaimPayment atomically binds PaymentID to a single paid order. The created
// order named by the claim is transitioned if it is still waiting; otherwise
// the fallback order is inserted. Uniqueness of external_payment_id is the
// only guard: a concurrent or repeated claim for the same payment fails with
// models.ErrDuplicatePayment, across any number of service instances.
func (s *OrderStore) ClaimPayment(ctx context.Context, claim Claim) (*models.Order, error) {
	if claim.PaymentID == "" {
		return nil, errors.New("claim payment: empty payment id")
	}

	var claimed *models.Order
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := uuid.Parse(claim.OrderID); err == nil {
			row := tx.QueryRowContext(ctx,
				`UPDATE orders SET status = $1, external_payment_id = $2, paid_amount = $3, currency = $4,
					paid_at = NOW(), updated_at = NOW()
				WHERE id = $5 AND brand_id = $6 AND status = $7
				RETURNING `+orderColumns,
				string(models.OrderStatusPaid), claim.PaymentID, claim.PaidAmount, claim.Currency,
				claim.OrderID, claim.BrandID, string(models.OrderStatusCreated),
			)
			order, err := scanOrder(row)
			switch {
			case err == nil:
				claimed = order
				return nil
			case isUniqueViolation(err):
				return models.ErrDuplicatePayment
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("claim payment: update order: %w", err)
			}
		}

		order, err := insertPaidOrder(ctx, tx, claim)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrDuplicatePayment
			}
			return fmt.Errorf("claim payment: insert order: %w", err)
		}
		claimed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func insertPaidOrder(ctx context.Context, tx *sql.Tx, claim Claim) (*models.Order, error) {
	o := claim.Fallback
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Items == nil {
		o.Items = []models.LineItem{}
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, buyer_id, buyer_email, brand_id, items, shipping_method, payment_method,
			subtotal, shipping_cost, surcharge, total, paid_amount, currency, external_payment_id, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		RETURNING `+orderColumns,
		o.ID, o.BuyerID, o.BuyerEmail, claim.BrandID, items,
		string(o.ShippingMethod), string(models.PaymentGateway),
		o.Subtotal, o.ShippingCost, o.Surcharge, o.Total,
		claim.PaidAmount, claim.Currency, claim.PaymentID, string(models.OrderStatusPaid),
	)
	return scanOrder(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o                 models.Order
		items             []byte
		shippingMethod    string
		paymentMethod     string
		status            string
		paidAmount        sql.NullInt64
		currency          sql.NullString
		externalPaymentID sql.NullString
		paidAt            sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.BuyerEmail, &o.BrandID, &items, &shippingMethod, &paymentMethod,
		&o.Subtotal, &o.ShippingCost, &o.Surcharge, &o.Total, &paidAmount, &currency, &externalPaymentID, &status,
		&o.Shipping.Name, &o.Shipping.DNI, &o.Shipping.Phone, &o.Shipping.Address,
		&o.Shipping.City, &o.Shipping.Zip, &o.Shipping.Notes,
		&o.CreatedAt, &o.UpdatedAt, &paidAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items: %w", err)
		}
	}

	o.ShippingMethod = models.ShippingMethod(shippingMethod)
	o.PaymentMethod = models.PaymentMethod(paymentMethod)
	o.Status = models.OrderStatus(status)
	if paidAmount.Valid {
		o.PaidAmount = &paidAmount.Int64
	}
	if currency.Valid {
		o.Currency = &currency.String
	}
	if externalPaymentID.Valid {
		o.ExternalPaymentID = &externalPaymentID.String
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	return &o, nil
}

func scanOrderOrNotFound(row rowScanner) (*models.Order, error) {
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}
