package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront-svc/config"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS brands (
	id TEXT PRIMARY KEY,
	slug TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	ship_address_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	ship_pickup_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	ship_address_cost BIGINT NOT NULL DEFAULT 0,
	ship_pickup_cost BIGINT NOT NULL DEFAULT 0,
	free_shipping_from BIGINT NOT NULL DEFAULT 0,
	gateway_surcharge_pct NUMERIC(5, 2) NOT NULL DEFAULT 0,
	gateway_access_token TEXT NOT NULL DEFAULT '',
	transfer_enabled BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	brand_id TEXT NOT NULL REFERENCES brands(id),
	name TEXT NOT NULL,
	price BIGINT NOT NULL CHECK (price >= 0),
	stock INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	buyer_id TEXT NOT NULL DEFAULT '',
	buyer_email TEXT NOT NULL DEFAULT '',
	brand_id TEXT NOT NULL REFERENCES brands(id),
	items JSONB NOT NULL,
	shipping_method VARCHAR(16) NOT NULL DEFAULT '',
	payment_method VARCHAR(16) NOT NULL,
	subtotal BIGINT NOT NULL,
	shipping_cost BIGINT NOT NULL,
	surcharge BIGINT NOT NULL,
	total BIGINT NOT NULL CHECK (total = subtotal + shipping_cost + surcharge),
	paid_amount BIGINT,
	currency VARCHAR(8),
	external_payment_id TEXT UNIQUE,
	status VARCHAR(16) NOT NULL,
	ship_name TEXT NOT NULL DEFAULT '',
	ship_dni TEXT NOT NULL DEFAULT '',
	ship_phone TEXT NOT NULL DEFAULT '',
	ship_address TEXT NOT NULL DEFAULT '',
	ship_city TEXT NOT NULL DEFAULT '',
	ship_zip TEXT NOT NULL DEFAULT '',
	ship_notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	paid_at TIMESTAMPTZ,
	CHECK (status <> 'paid' OR external_payment_id IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS orders_buyer_id_idx ON orders (buyer_id);

CREATE TABLE IF NOT EXISTS threads (
	id UUID PRIMARY KEY,
	order_id UUID UNIQUE NOT NULL REFERENCES orders(id),
	brand_id TEXT NOT NULL,
	buyer_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func InitDB(cfg config.Database, logger *zap.Logger) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Database connection established", zap.String("database", cfg.Name))
	return db, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
