package repository

import (
	"context"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
)

// StatusFields are written together with a status change. Empty strings are
// left untouched.
type StatusFields struct {
	GatewayOrderRef   string
	GatewayPaymentRef string
	GatewaySignature  string
	IncrementAttempts bool

	// MatchGatewayOrderRef additionally guards the write on the stored
	// gateway reference, binding the change to one payment attempt.
	MatchGatewayOrderRef string
}

type ListFilter struct {
	Status domain.OrderStatus
	Limit  int
	Offset int
}

type OrderRepository interface {
	// Create fails with domain.ErrConflict if the order id is taken.
	Create(ctx context.Context, order *domain.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	FindByGatewayOrderRef(ctx context.Context, ref string) (*domain.Order, error)
	FindByBuyer(ctx context.Context, buyer domain.Identity, limit int) ([]domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)

	// CompareAndSetStatus is the only mutation path after creation. It
	// writes nothing and returns domain.ErrConflict unless the stored status
	// equals expected at the moment of the write.
	CompareAndSetStatus(ctx context.Context, orderID string, expected, next domain.OrderStatus, fields StatusFields) (*domain.Order, error)
}

// SequenceRepository hands out per-year order sequence numbers. Next must be
// an atomic increment: concurrent callers never observe the same value.
type SequenceRepository interface {
	Next(ctx context.Context, year int) (int64, error)
}
