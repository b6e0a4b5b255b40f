package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// CancelOrder cancels an order that has not left the warehouse. The buyer
// who owns the order and admins may cancel. Cancelling twice succeeds.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, requester domain.Identity) (*domain.Order, error) {
	o, err := s.loadFor(ctx, orderID, requester)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		switch o.Status {
		case domain.StatusCancelled:
			return o, nil
		case domain.StatusShipped:
			return nil, &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: domain.StatusCancelled,
				Reason: "order already shipped, cannot cancel"}
		case domain.StatusDelivered:
			return nil, &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: domain.StatusCancelled,
				Reason: "order already delivered, cannot cancel"}
		}

		wasPaid := o.Status == domain.StatusPaid || (o.Status == domain.StatusProcessing && o.GatewayPaymentRef != "")
		cancelled, err := s.transition(ctx, o, domain.StatusCancelled, repository.StatusFields{})
		if err == nil {
			if wasPaid {
				log.Warn().Str("order_id", o.OrderID).Str("gateway_payment_ref", o.GatewayPaymentRef).
					Msg("paid order cancelled, refund is handled outside the order service")
			}
			s.notify(domain.EventOrderCancelled, cancelled)
			return cancelled, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		if o, err = s.load(ctx, o.OrderID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("order %s: cancel kept losing to concurrent updates: %w", orderID, domain.ErrConflict)
}

// AdvanceFulfillment moves an order one step along Processing, Shipped,
// Delivered. Admin only. Requesting the current status is a no-op;
// moving backwards or skipping a step is rejected.
func (s *OrderService) AdvanceFulfillment(ctx context.Context, orderID string, next domain.OrderStatus, requester domain.Identity) (*domain.Order, error) {
	if !requester.IsAdmin {
		return nil, domain.ErrForbidden
	}
	if domain.FulfillmentStep(next) == 0 {
		return nil, domain.NewValidationError("status", fmt.Sprintf("must be one of %s, %s, %s",
			domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered))
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if o.Status == next {
			return o, nil
		}
		if err := fulfillmentGuard(o, next); err != nil {
			return nil, err
		}

		updated, err := s.transition(ctx, o, next, repository.StatusFields{})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		if o, err = s.load(ctx, o.OrderID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("order %s: fulfillment kept losing to concurrent updates: %w", orderID, domain.ErrConflict)
}

func fulfillmentGuard(o *domain.Order, next domain.OrderStatus) error {
	if domain.CanTransition(o.Status, next) {
		return nil
	}

	reject := func(reason string) error {
		return &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: next, Reason: reason}
	}
	cur := domain.FulfillmentStep(o.Status)
	switch {
	case o.Status == domain.StatusCancelled:
		return reject("order is cancelled")
	case cur > domain.FulfillmentStep(next):
		return reject(fmt.Sprintf("order is already %s, cannot move back to %s", o.Status, next))
	case cur > 0:
		return reject(fmt.Sprintf("order is %s, it cannot skip to %s", o.Status, next))
	case next == domain.StatusProcessing:
		return reject(fmt.Sprintf("order is %s, only paid or cash on delivery orders can be processed", o.Status))
	default:
		return reject(fmt.Sprintf("order is %s, it must be %s first", o.Status, domain.StatusProcessing))
	}
}
