package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable covers network failures, timeouts, 5xx and 429
	// answers, unreadable bodies and an open circuit. Callers may retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected covers any other 4xx: bad credential, unknown
	// resource or a request the gateway refuses. Retrying will not help.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
)

type Error struct {
	Op         string
	StatusCode int
	Kind       error
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway %s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

func IsRejected(err error) bool {
	return errors.Is(err, ErrGatewayRejected)
}
