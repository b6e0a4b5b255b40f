package services

import "fmt"

// PaymentPendingError reports an order that was stored but whose gateway
// intent could not be opened. The order is left where it was and can be
// paid through RetryPayment.
type PaymentPendingError struct {
	OrderID string
	Err     error
}

func (e *PaymentPendingError) Error() string {
	return fmt.Sprintf("order %s saved, payment not started: %v", e.OrderID, e.Err)
}

func (e *PaymentPendingError) Unwrap() error {
	return e.Err
}
