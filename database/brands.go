package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront-svc/cache"
	"storefront-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const brandColumns = `id, slug, name, ship_address_enabled, ship_pickup_enabled, ship_address_cost,
	ship_pickup_cost, free_shipping_from, gateway_surcharge_pct, gateway_access_token, transfer_enabled`

// BrandStore reads brand payment configuration through a Redis cache. A nil
// redis client disables caching; Redis failures fall back to the database.
type BrandStore struct {
	db     *sql.DB
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewBrandStore(db *sql.DB, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *BrandStore {
	return &BrandStore{db: db, rdb: rdb, ttl: ttl, logger: logger}
}

func (s *BrandStore) GetBySlug(ctx context.Context, slug string) (*models.Brand, error) {
	if slug == "" {
		return nil, models.ErrBrandNotFound
	}

	if s.rdb != nil {
		brand, err := cache.GetBrand(ctx, s.rdb, slug)
		if err == nil {
			return &brand, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Brand cache read failed", zap.String("brand", slug), zap.Error(err))
		}
	}

	var (
		b   models.Brand
		pct float64
	)
	err := s.db.QueryRowContext(ctx, "SELECT "+brandColumns+" FROM brands WHERE slug = $1", slug).Scan(
		&b.ID, &b.Slug, &b.Name,
		&b.AddressShippingEnabled, &b.PickupShippingEnabled,
		&b.AddressShippingCost, &b.PickupShippingCost, &b.FreeShippingFrom,
		&pct, &b.GatewayAccessToken, &b.TransferEnabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	b.GatewaySurchargePct = pct

	if s.rdb != nil {
		if err := cache.SetBrand(ctx, s.rdb, b, s.ttl); err != nil {
			s.logger.Warn("Brand cache write failed", zap.String("brand", slug), zap.Error(err))
		}
	}
	return &b, nil
}
