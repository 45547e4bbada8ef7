package models

import "errors"

var (
	ErrInvalidCart     = errors.New("invalid cart")
	ErrInvalidShipping = errors.New("invalid shipping")
	ErrInvalidPayment  = errors.New("invalid payment")

	ErrBrandNotFound    = errors.New("brand not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicatePayment = errors.New("external payment already claimed")
)

// ValidationError is a user-correctable checkout problem. Kind is one of
// ErrInvalidCart, ErrInvalidShipping or ErrInvalidPayment.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Code is the stable identifier returned to API clients.
func (e *ValidationError) Code() string {
	switch e.Kind {
	case ErrInvalidCart:
		return "invalid_cart"
	case ErrInvalidShipping:
		return "invalid_shipping"
	case ErrInvalidPayment:
		return "invalid_payment"
	default:
		return "invalid_request"
	}
}

func NewValidationError(kind error, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}
