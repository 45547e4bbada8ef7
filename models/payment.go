package models

import (
	"fmt"
	"strings"
)

// PaymentNotification is an inbound gateway notification after the loosely
// typed payload has been normalized. Only PaymentID is trusted; everything
// else about the payment is fetched from the gateway.
type PaymentNotification struct {
	Topic     string
	PaymentID string
}

const TopicPayment = "payment"

const PaymentStatusApproved = "approved"

// ExternalReference correlates a gateway payment back to the brand, order and
// buyer it was created for. It travels through the gateway as an opaque string.
type ExternalReference struct {
	BrandID string
	OrderID string
	BuyerID string
}

func (r ExternalReference) String() string {
	return fmt.Sprintf("b:%s;o:%s;u:%s", r.BrandID, r.OrderID, r.BuyerID)
}

// ParseExternalReference is lenient: unknown or malformed segments are
// skipped so that a partially readable reference still yields what it can.
func ParseExternalReference(s string) ExternalReference {
	var ref ExternalReference
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		switch key {
		case "b":
			ref.BrandID = value
		case "o":
			ref.OrderID = value
		case "u":
			ref.BuyerID = value
		}
	}
	return ref
}
