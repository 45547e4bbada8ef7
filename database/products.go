package database

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-svc/models"

	"github.com/lib/pq"
)

type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// ProductsByID loads the brand's products with the given ids. Unknown ids,
// ids of other brands and inactive products are absent from the result.
func (c *Catalog) ProductsByID(ctx context.Context, brandID string, ids []string) (map[string]models.Product, error) {
	products := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT id, brand_id, name, price, stock, active FROM products WHERE brand_id = $1 AND active AND id = ANY($2)",
		brandID, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.BrandID, &p.Name, &p.Price, &p.Stock, &p.Active); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}
