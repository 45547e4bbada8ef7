// Package pricing computes order totals. The same computation backs the
// checkout preview and the authoritative server-side recompute, so the two
// always agree.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"storefront-svc/models"
)

var ErrInvalidLine = errors.New("pricing: quantity must be at least 1 and price non-negative")

// ErrAmountTooLarge wraps ErrInvalidLine so callers rejecting invalid carts
// reject oversized ones too.
var ErrAmountTooLarge = fmt.Errorf("%w: amount exceeds %d", ErrInvalidLine, int64(MaxAmount))

// MaxAmount bounds every computed amount. It keeps int64 sums from wrapping
// and stays exactly representable as float64 for the surcharge math.
const MaxAmount = 1 << 53

type Line struct {
	UnitPrice int64
	Quantity  int
}

type Totals struct {
	Subtotal     int64 `json:"subtotal"`
	ShippingCost int64 `json:"shipping_cost"`
	Surcharge    int64 `json:"surcharge"`
	Total        int64 `json:"total"`
}

// Compute prices a cart. Amounts are whole currency units.
func Compute(lines []Line, shipping models.ShippingMethod, payment models.PaymentMethod, cfg models.BrandPaymentConfig) (Totals, error) {
	var t Totals
	for _, l := range lines {
		if l.Quantity < 1 || l.UnitPrice < 0 {
			return Totals{}, ErrInvalidLine
		}
		if l.UnitPrice > (MaxAmount-t.Subtotal)/int64(l.Quantity) {
			return Totals{}, ErrAmountTooLarge
		}
		t.Subtotal += l.UnitPrice * int64(l.Quantity)
	}

	if cfg.FreeShippingFrom > 0 && t.Subtotal >= cfg.FreeShippingFrom {
		t.ShippingCost = 0
	} else {
		t.ShippingCost = cfg.ShippingCost(shipping)
	}

	if payment == models.PaymentGateway {
		if float64(t.Subtotal)*cfg.GatewaySurchargePct/100 > MaxAmount {
			return Totals{}, ErrAmountTooLarge
		}
		t.Surcharge = Surcharge(t.Subtotal, cfg.GatewaySurchargePct)
	}

	if t.ShippingCost > MaxAmount-t.Subtotal || t.Surcharge > MaxAmount-t.Subtotal-t.ShippingCost {
		return Totals{}, ErrAmountTooLarge
	}
	t.Total = t.Subtotal + t.ShippingCost + t.Surcharge
	return t, nil
}

// Surcharge rounds half away from zero.
func Surcharge(subtotal int64, pct float64) int64 {
	if pct <= 0 {
		return 0
	}
	return int64(math.Round(float64(subtotal) * pct / 100))
}

func LinesFromItems(items []models.LineItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return lines
}
