package models

import "time"

type Thread struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	BrandID   string    `json:"brand_id"`
	BuyerID   string    `json:"buyer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Buyer is the identity resolved by the auth provider for one request.
type Buyer struct {
	ID    string
	Email string
}
