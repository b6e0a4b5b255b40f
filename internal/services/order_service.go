package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	myOrdersLimit = 100

	// bounds the re-read loop after a lost compare-and-set
	maxCASAttempts = 3
)

type IDGenerator interface {
	Next(ctx context.Context) (string, error)
}

type CouponResolver interface {
	Discount(code string, subtotal int64) (int64, error)
}

type ShippingPolicy interface {
	FeeFor(subtotalAfterDiscount int64) int64
}

type Config struct {
	Currency       string
	GatewayTimeout time.Duration
	NotifyTimeout  time.Duration
	Coupons        CouponResolver
	Shipping       ShippingPolicy
}

// OrderService drives orders through their lifecycle. It keeps no order
// state between calls: every operation re-reads the order and commits
// through the store's compare-and-set.
type OrderService struct {
	repo      repository.OrderRepository
	ids       IDGenerator
	gateway   infra.PaymentGateway
	catalog   infra.CatalogClientInterface
	publisher infra.EventPublisher
	cfg       Config
	now       func() time.Time

	notifications sync.WaitGroup
}

func NewOrderService(
	repo repository.OrderRepository,
	ids IDGenerator,
	gateway infra.PaymentGateway,
	catalog infra.CatalogClientInterface,
	pub infra.EventPublisher,
	cfg Config,
) *OrderService {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if pub == nil {
		pub = infra.NopPublisher{}
	}
	return &OrderService{
		repo:      repo,
		ids:       ids,
		gateway:   gateway,
		catalog:   catalog,
		publisher: pub,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetOrder returns the order if requester owns it or is an admin. Orders
// of other buyers are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, requester domain.Identity) (*domain.Order, error) {
	return s.loadFor(ctx, orderID, requester)
}

func (s *OrderService) ListOrdersForBuyer(ctx context.Context, requester domain.Identity) ([]domain.Order, error) {
	if requester.UserID == "" && requester.Email == "" {
		return nil, domain.ErrForbidden
	}
	orders, err := s.repo.FindByBuyer(ctx, requester, myOrdersLimit)
	if err != nil {
		return nil, s.storeFault(err, "list buyer orders", "")
	}
	return orders, nil
}

func (s *OrderService) ListOrders(ctx context.Context, requester domain.Identity, filter repository.ListFilter) ([]domain.Order, error) {
	if !requester.IsAdmin {
		return nil, domain.ErrForbidden
	}
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.storeFault(err, "list orders", "")
	}
	return orders, nil
}

// Drain waits for in-flight notifications. Called on shutdown.
func (s *OrderService) Drain() {
	s.notifications.Wait()
}

func (s *OrderService) load(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.NewValidationError("orderId", "is required")
	}
	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, s.storeFault(err, "load order", orderID)
	}
	return o, nil
}

func (s *OrderService) loadFor(ctx context.Context, orderID string, requester domain.Identity) (*domain.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin && !o.OwnedBy(requester) {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// transition checks the table before handing the write to the store, so
// no code path can commit a move the lifecycle does not allow.
func (s *OrderService) transition(ctx context.Context, o *domain.Order, next domain.OrderStatus, fields repository.StatusFields) (*domain.Order, error) {
	if !domain.CanTransition(o.Status, next) {
		return nil, &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: next}
	}
	updated, err := s.repo.CompareAndSetStatus(ctx, o.OrderID, o.Status, next, fields)
	if err != nil {
		return nil, s.storeFault(err, "update order status", o.OrderID)
	}
	log.Info().Str("order_id", o.OrderID).Stringer("from", o.Status).Stringer("to", next).Msg("order status changed")
	return updated, nil
}

// storeFault keeps raw driver errors behind the engine boundary.
func (s *OrderService) storeFault(err error, op, orderID string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrStoreUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	log.Error().Err(err).Str("op", op).Str("order_id", orderID).Msg("order store failure")
	return fmt.Errorf("%s: %w", op, domain.ErrStoreUnavailable)
}

// notify is fire-and-forget; a failed publish is logged and never affects
// the transition that triggered it.
func (s *OrderService) notify(t domain.EventType, o *domain.Order) {
	evt := domain.NewOrderEvent(t, o)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, string(t), evt); err != nil {
			log.Warn().Err(err).Str("order_id", evt.OrderID).Str("event", string(t)).Msg("failed to publish order event")
		}
	}()
}
