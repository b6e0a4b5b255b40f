package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrSignatureInvalid   = errors.New("payment could not be verified")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrForbidden          = errors.New("forbidden")
	ErrStoreUnavailable   = errors.New("order store unavailable")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// ValidationError is malformed or incomplete input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError is a rejection the caller can act on, e.g. cancelling a
// shipped order.
type TransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
	Reason  string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
