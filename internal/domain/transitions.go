package domain

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusCreated: {
		StatusPendingPayment: true,
		StatusCancelled:      true,
	},
	StatusPendingPayment: {
		StatusPaid:           true,
		StatusPaymentFailed:  true,
		StatusPendingPayment: true,
		StatusCancelled:      true,
	},
	StatusPaymentFailed: {
		StatusPendingPayment: true,
		StatusPaid:           true,
		StatusCancelled:      true,
	},
	StatusPendingCOD: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusPaid: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	return allowedTransitions[from][to]
}

// InitialStatus is the status an order is persisted with at checkout.
func InitialStatus(m PaymentMethod) OrderStatus {
	if m == PaymentCOD {
		return StatusPendingCOD
	}
	return StatusCreated
}

// Cancellable is false once the parcel has left the warehouse.
func Cancellable(s OrderStatus) bool {
	return CanTransition(s, StatusCancelled)
}

// Retryable statuses accept a fresh gateway intent. Created is included so an
// order whose first intent timed out can be paid.
func Retryable(s OrderStatus) bool {
	return s == StatusCreated || s == StatusPendingPayment || s == StatusPaymentFailed
}

var fulfillmentOrder = map[OrderStatus]int{
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// FulfillmentStep returns the position of s in Processing -> Shipped ->
// Delivered, or 0 if s is not a fulfillment status.
func FulfillmentStep(s OrderStatus) int {
	return fulfillmentOrder[s]
}
