package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// OrderStatus is a closed enumeration; the zero value is not a valid status.
type OrderStatus uint8

const (
	StatusUnknown OrderStatus = iota
	StatusCreated
	StatusPendingPayment
	StatusPaid
	StatusPaymentFailed
	StatusPendingCOD
	StatusProcessing
	StatusShipped
	StatusDelivered
	StatusCancelled
)

var statusNames = [...]string{
	StatusUnknown:        "Unknown",
	StatusCreated:        "Created",
	StatusPendingPayment: "PendingPayment",
	StatusPaid:           "Paid",
	StatusPaymentFailed:  "PaymentFailed",
	StatusPendingCOD:     "PendingCOD",
	StatusProcessing:     "Processing",
	StatusShipped:        "Shipped",
	StatusDelivered:      "Delivered",
	StatusCancelled:      "Cancelled",
}

func (s OrderStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("OrderStatus(%d)", uint8(s))
}

func (s OrderStatus) Valid() bool {
	return s > StatusUnknown && int(s) < len(statusNames)
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(v string) (OrderStatus, error) {
	for i, name := range statusNames {
		if i == int(StatusUnknown) {
			continue
		}
		if strings.EqualFold(name, strings.TrimSpace(v)) {
			return OrderStatus(i), nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown order status %q", v)
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the status by name so the column stays readable.
func (s OrderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *OrderStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	case nil:
		*s = StatusUnknown
		return nil
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", src)
	}
}
