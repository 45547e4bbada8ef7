package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-svc/models"

	"github.com/google/uuid"
)

type ThreadStore struct {
	db *sql.DB
}

func NewThreadStore(db *sql.DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// CreateThread opens the conversation thread for an order. At most one thread
// exists per order; repeated calls return the existing one.
func (s *ThreadStore) CreateThread(ctx context.Context, order *models.Order) (*models.Thread, error) {
	t := models.Thread{
		ID:      uuid.NewString(),
		OrderID: order.ID,
		BrandID: order.BrandID,
		BuyerID: order.BuyerID,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO threads (id, order_id, brand_id, buyer_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING created_at`,
		t.ID, t.OrderID, t.BrandID, t.BuyerID,
	).Scan(&t.CreatedAt)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	existing := models.Thread{}
	err = s.db.QueryRowContext(ctx,
		"SELECT id, order_id, brand_id, buyer_id, created_at FROM threads WHERE order_id = $1",
		order.ID,
	).Scan(&existing.ID, &existing.OrderID, &existing.BrandID, &existing.BuyerID, &existing.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load existing thread: %w", err)
	}
	return &existing, nil
}
