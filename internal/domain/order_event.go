package domain

import "time"

type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderPaid          EventType = "order.paid"
	EventOrderPaymentFailed EventType = "order.payment_failed"
	EventOrderCancelled     EventType = "order.cancelled"
)

// OrderEvent is what the notification collaborator receives. It carries no
// gateway signature material.
type OrderEvent struct {
	Type          EventType     `json:"type"`
	OrderID       string        `json:"orderId"`
	BuyerEmail    string        `json:"buyerEmail"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

func NewOrderEvent(t EventType, o *Order) OrderEvent {
	return OrderEvent{
		Type:          t,
		OrderID:       o.OrderID,
		BuyerEmail:    o.Buyer.Email,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		Currency:      o.Currency,
		OccurredAt:    o.UpdatedAt,
	}
}

// PartitionKey keeps every event of one order on the same partition.
func (e OrderEvent) PartitionKey() string {
	return e.OrderID
}
