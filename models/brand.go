package models

// BrandPaymentConfig is owned by brand management and read-only here.
type BrandPaymentConfig struct {
	AddressShippingEnabled bool    `json:"ship_address_enabled"`
	PickupShippingEnabled  bool    `json:"ship_pickup_enabled"`
	AddressShippingCost    int64   `json:"ship_domicilio"`
	PickupShippingCost     int64   `json:"ship_sucursal"`
	FreeShippingFrom       int64   `json:"free_from"`
	GatewaySurchargePct    float64 `json:"mp_fee"`
	GatewayAccessToken     string  `json:"-"`
	TransferEnabled        bool    `json:"transfer_enabled"`
}

// Offers reports whether the brand ships with the given method.
func (c BrandPaymentConfig) Offers(method ShippingMethod) bool {
	switch method {
	case ShippingAddress:
		return c.AddressShippingEnabled
	case ShippingPickup:
		return c.PickupShippingEnabled
	default:
		return false
	}
}

func (c BrandPaymentConfig) ShippingCost(method ShippingMethod) int64 {
	switch method {
	case ShippingAddress:
		return c.AddressShippingCost
	case ShippingPickup:
		return c.PickupShippingCost
	default:
		return 0
	}
}

type Brand struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
	BrandPaymentConfig
}

// BrandCacheEntry keeps the gateway credential, which Brand hides from JSON.
type BrandCacheEntry struct {
	Brand       Brand  `json:"brand"`
	AccessToken string `json:"access_token"`
}

func NewBrandCacheEntry(b Brand) BrandCacheEntry {
	return BrandCacheEntry{Brand: b, AccessToken: b.GatewayAccessToken}
}

func (e BrandCacheEntry) Restore() Brand {
	b := e.Brand
	b.GatewayAccessToken = e.AccessToken
	return b
}
