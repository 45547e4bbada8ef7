package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrderID = "7f1b2a34-5c6d-4e8f-9a0b-1c2d3e4f5a6b"

var orderRowColumns = []string{
	"id", "buyer_id", "buyer_email", "brand_id", "items", "shipping_method", "payment_method",
	"subtotal", "shipping_cost", "surcharge", "total", "paid_amount", "currency", "external_payment_id", "status",
	"ship_name", "ship_dni", "ship_phone", "ship_address", "ship_city", "ship_zip", "ship_notes",
	"created_at", "updated_at", "paid_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func createdOrderRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(orderRowColumns).AddRow(
		testOrderID, "buyer-1", "buyer@example.com", "brand-1",
		[]byte(`[{"product_id":"p1","name":"Mug","unit_price":1000,"quantity":2}]`),
		"address", "gateway", 2000, 200, 0, 2200, nil, nil, nil, "created",
		"Ana", "123", "555", "Main 1", "Town", "1000", "",
		now, now, nil,
	)
}

func paidOrderRow(now time.Time, paymentID string) *sqlmock.Rows {
	return sqlmock.NewRows(orderRowColumns).AddRow(
		testOrderID, "buyer-1", "buyer@example.com", "brand-1",
		[]byte(`[{"product_id":"p1","name":"Mug","unit_price":1000,"quantity":2}]`),
		"address", "gateway", 2000, 200, 0, 2200, 2200, "ARS", paymentID, "paid",
		"Ana", "123", "555", "Main 1", "Town", "1000", "",
		now, now, now,
	)
}

func TestOrderStore_CreateOrder(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)
	now := time.Now()

	order := &models.Order{
		ID:             testOrderID,
		BuyerID:        "buyer-1",
		BrandID:        "brand-1",
		Items:          []models.LineItem{{ProductID: "p1", Name: "Mug", UnitPrice: 1000, Quantity: 2}},
		ShippingMethod: models.ShippingAddress,
		PaymentMethod:  models.PaymentGateway,
		Subtotal:       2000,
		ShippingCost:   200,
		Total:          2200,
		Status:         models.OrderStatusCreated,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (id, buyer_id")).
		WithArgs(testOrderID, "buyer-1", "", "brand-1", sqlmock.AnyArg(), "address", "gateway",
			int64(2000), int64(200), int64(0), int64(2200), "created",
			"", "", "", "", "", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, store.CreateOrder(context.Background(), order))
	assert.Equal(t, now, order.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_CreateOrder_RejectsPaid(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	err := store.CreateOrder(context.Background(), &models.Order{ID: testOrderID, Status: models.OrderStatusPaid})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_GetOrderForBuyer(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 AND buyer_id = $2")).
		WithArgs(testOrderID, "buyer-1").
		WillReturnRows(createdOrderRow(now))

	order, err := store.GetOrderForBuyer(context.Background(), testOrderID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.Equal(t, models.ShippingAddress, order.ShippingMethod)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1000), order.Items[0].UnitPrice)
	assert.Equal(t, "Ana", order.Shipping.Name)
	assert.Nil(t, order.ExternalPaymentID)
	assert.Nil(t, order.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_GetOrderForBuyer_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 AND buyer_id = $2")).
		WithArgs(testOrderID, "someone-else").
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	_, err := store.GetOrderForBuyer(context.Background(), testOrderID, "someone-else")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_GetOrder_MalformedID(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	_, err := store.GetOrder(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_FindByExternalPaymentID(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE external_payment_id = $1")).
		WithArgs("pay-1").
		WillReturnRows(paidOrderRow(time.Now(), "pay-1"))

	order, err := store.FindByExternalPaymentID(context.Background(), "pay-1")
	require.NoError(t, err)
	require.NotNil(t, order.ExternalPaymentID)
	assert.Equal(t, "pay-1", *order.ExternalPaymentID)
	require.NotNil(t, order.PaidAmount)
	assert.Equal(t, int64(2200), *order.PaidAmount)
	assert.NotNil(t, order.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_ClaimPayment_TransitionsCreatedOrder(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $1, external_payment_id = $2")).
		WithArgs("paid", "pay-1", int64(2200), "ARS", testOrderID, "brand-1", "created").
		WillReturnRows(paidOrderRow(time.Now(), "pay-1"))
	mock.ExpectCommit()

	order, err := store.ClaimPayment(context.Background(), Claim{
		PaymentID:  "pay-1",
		BrandID:    "brand-1",
		OrderID:    testOrderID,
		PaidAmount: 2200,
		Currency:   "ARS",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, testOrderID, order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_ClaimPayment_InsertsWhenNothingToTransition(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $1")).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (id, buyer_id")).
		WillReturnRows(paidOrderRow(time.Now(), "pay-2"))
	mock.ExpectCommit()

	order, err := store.ClaimPayment(context.Background(), Claim{
		PaymentID:  "pay-2",
		BrandID:    "brand-1",
		OrderID:    testOrderID,
		PaidAmount: 2200,
		Currency:   "ARS",
		Fallback:   models.Order{BuyerID: "buyer-1", Total: 2200, Subtotal: 2200},
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-2", *order.ExternalPaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_ClaimPayment_WithoutOrderReference(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (id, buyer_id")).
		WithArgs(sqlmock.AnyArg(), "buyer-1", "", "brand-1", sqlmock.AnyArg(), "", "gateway",
			int64(1500), int64(0), int64(0), int64(1500), int64(1500), "ARS", "pay-3", "paid").
		WillReturnRows(paidOrderRow(time.Now(), "pay-3"))
	mock.ExpectCommit()

	_, err := store.ClaimPayment(context.Background(), Claim{
		PaymentID:  "pay-3",
		BrandID:    "brand-1",
		PaidAmount: 1500,
		Currency:   "ARS",
		Fallback:   models.Order{BuyerID: "buyer-1", Subtotal: 1500, Total: 1500},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_ClaimPayment_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $1")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := store.ClaimPayment(context.Background(), Claim{
		PaymentID: "pay-1",
		BrandID:   "brand-1",
		OrderID:   testOrderID,
	})
	assert.ErrorIs(t, err, models.ErrDuplicatePayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_ClaimPayment_DuplicateOnInsert(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (id, buyer_id")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.ClaimPayment(context.Background(), Claim{PaymentID: "pay-1", BrandID: "brand-1"})
	assert.ErrorIs(t, err, models.ErrDuplicatePayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_ClaimPayment_EmptyPaymentID(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewOrderStore(db)

	_, err := store.ClaimPayment(context.Background(), Claim{BrandID: "brand-1"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
