package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var brandRowColumns = []string{
	"id", "slug", "name", "ship_address_enabled", "ship_pickup_enabled", "ship_address_cost",
	"ship_pickup_cost", "free_shipping_from", "gateway_surcharge_pct", "gateway_access_token", "transfer_enabled",
}

func TestBrandStore_GetBySlug(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewBrandStore(db, nil, time.Minute, zaptest.NewLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("FROM brands WHERE slug = $1")).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(brandRowColumns).
			AddRow("brand-1", "acme", "Acme", true, false, 200, 0, 5000, 10.0, "tok-acme", true))

	brand, err := store.GetBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "brand-1", brand.ID)
	assert.True(t, brand.Offers(models.ShippingAddress))
	assert.False(t, brand.Offers(models.ShippingPickup))
	assert.Equal(t, int64(200), brand.ShippingCost(models.ShippingAddress))
	assert.Equal(t, 10.0, brand.GatewaySurchargePct)
	assert.Equal(t, "tok-acme", brand.GatewayAccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBrandStore_GetBySlug_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewBrandStore(db, nil, time.Minute, zaptest.NewLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("FROM brands WHERE slug = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(brandRowColumns))

	_, err := store.GetBySlug(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrBrandNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBrandStore_GetBySlug_RedisDownFallsBackToDatabase(t *testing.T) {
	db, mock := newMockDB(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })
	store := NewBrandStore(db, rdb, time.Minute, zaptest.NewLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("FROM brands WHERE slug = $1")).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(brandRowColumns).
			AddRow("brand-1", "acme", "Acme", true, true, 200, 100, 0, 0.0, "tok", false))

	brand, err := store.GetBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", brand.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBrandStore_GetBySlug_DatabaseError(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewBrandStore(db, nil, time.Minute, zaptest.NewLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("FROM brands WHERE slug = $1")).
		WillReturnError(errors.New("connection reset"))

	_, err := store.GetBySlug(context.Background(), "acme")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrBrandNotFound)
}

func TestCatalog_ProductsByID(t *testing.T) {
	db, mock := newMockDB(t)
	catalog := NewCatalog(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE brand_id = $1 AND active AND id = ANY($2)")).
		WithArgs("brand-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "brand_id", "name", "price", "stock", "active"}).
			AddRow("p1", "brand-1", "Mug", 1000, 5, true))

	products, err := catalog.ProductsByID(context.Background(), "brand-1", []string{"p1", "p-missing"})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int64(1000), products["p1"].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_ProductsByID_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	products, err := NewCatalog(db).ProductsByID(context.Background(), "brand-1", nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadStore_CreateThread(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewThreadStore(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO threads")).
		WithArgs(sqlmock.AnyArg(), testOrderID, "brand-1", "buyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	thread, err := store.CreateThread(context.Background(), &models.Order{ID: testOrderID, BrandID: "brand-1", BuyerID: "buyer-1"})
	require.NoError(t, err)
	assert.Equal(t, testOrderID, thread.OrderID)
	assert.NotEmpty(t, thread.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadStore_CreateThread_ReturnsExisting(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewThreadStore(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO threads")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM threads WHERE order_id = $1")).
		WithArgs(testOrderID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "brand_id", "buyer_id", "created_at"}).
			AddRow("thread-1", testOrderID, "brand-1", "buyer-1", now))

	thread, err := store.CreateThread(context.Background(), &models.Order{ID: testOrderID, BrandID: "brand-1", BuyerID: "buyer-1"})
	require.NoError(t, err)
	assert.Equal(t, "thread-1", thread.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
