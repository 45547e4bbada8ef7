package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-svc/config"
	"storefront-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(cfg config.Redis, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

func brandKey(slug string) string {
	return fmt.Sprintf("brand:%s", slug)
}

// GetBrand returns redis.Nil when the brand is not cached.
func GetBrand(ctx context.Context, rdb redis.Cmdable, slug string) (models.Brand, error) {
	data, err := rdb.Get(ctx, brandKey(slug)).Bytes()
	if err != nil {
		return models.Brand{}, err
	}
	var entry models.BrandCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.Brand{}, fmt.Errorf("failed to decode cached brand: %w", err)
	}
	return entry.Restore(), nil
}

func SetBrand(ctx context.Context, rdb redis.Cmdable, brand models.Brand, ttl time.Duration) error {
	data, err := json.Marshal(models.NewBrandCacheEntry(brand))
	if err != nil {
		return err
	}
	return rdb.Set(ctx, brandKey(brand.Slug), data, ttl).Err()
}
