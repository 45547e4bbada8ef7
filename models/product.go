package models

type Product struct {
	ID      string `json:"id"`
	BrandID string `json:"brand_id"`
	Name    string `json:"name"`
	Price   int64  `json:"price"`
	Stock   int    `json:"stock"`
	Active  bool   `json:"active"`
}
