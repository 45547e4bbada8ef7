package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Item ids used for the non-product lines of a preference.
const (
	ShippingItemID  = "shipping"
	SurchargeItemID = "surcharge"
)

type Item struct {
	ID        string
	Title     string
	Quantity  int
	UnitPrice int64
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceRequest struct {
	Items             []Item
	Currency          string
	PayerEmail        string
	ExternalReference string
	NotificationURL   string
	BackURLs          BackURLs
}

type Preference struct {
	ID          string
	RedirectURL string
}

type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	TransactionAmount int64
	TotalPaidAmount   int64
	Currency          string
	ExternalReference string
	PayerEmail        string
	Items             []Item
}

// Approved reports whether the gateway considers the payment settled.
func (p Payment) Approved() bool {
	return p.Status == "approved"
}

// PaidAmount prefers the total actually paid, which includes financing
// charges, over the nominal transaction amount.
func (p Payment) PaidAmount() int64 {
	if p.TotalPaidAmount > 0 {
		return p.TotalPaidAmount
	}
	return p.TransactionAmount
}

type preferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceBody struct {
	Items             []preferenceItem `json:"items"`
	Payer             *payerBody       `json:"payer,omitempty"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	NotificationURL   string           `json:"notification_url"`
	ExternalReference string           `json:"external_reference"`
}

type payerBody struct {
	Email string `json:"email,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type paymentResponse struct {
	ID                 flexString `json:"id"`
	Status             string     `json:"status"`
	StatusDetail       string     `json:"status_detail"`
	TransactionAmount  flexNumber `json:"transaction_amount"`
	CurrencyID         string     `json:"currency_id"`
	ExternalReference  string     `json:"external_reference"`
	TransactionDetails struct {
		TotalPaidAmount flexNumber `json:"total_paid_amount"`
	} `json:"transaction_details"`
	AdditionalInfo struct {
		Items []struct {
			ID        flexString `json:"id"`
			Title     string     `json:"title"`
			Quantity  flexNumber `json:"quantity"`
			UnitPrice flexNumber `json:"unit_price"`
		} `json:"items"`
	} `json:"additional_info"`
	Payer struct {
		Email string `json:"email"`
	} `json:"payer"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// flexString accepts a JSON string or number. The gateway sends payment ids
// as numbers and item ids as strings.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber accepts a JSON number or a quoted number.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexNumber(v)
	return nil
}
