package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

func repositoryFieldsForIntent(intent *domain.GatewayIntent, previousRef string) repository.StatusFields {
	return repository.StatusFields{
		GatewayOrderRef:      intent.GatewayOrderRef,
		IncrementAttempts:    true,
		MatchGatewayOrderRef: previousRef,
	}
}

// openIntent asks the gateway for a new intent under a bounded timeout and
// reduces every failure to ErrGatewayUnavailable or ErrGatewayRejected.
func (s *OrderService) openIntent(ctx context.Context, o *domain.Order) (*domain.GatewayIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	intent, err := s.gateway.CreateIntent(ctx, o.Total, o.Currency, o.OrderID)
	if err != nil {
		log.Warn().Err(err).Str("order_id", o.OrderID).Msg("gateway intent failed")
		switch {
		case errors.Is(err, domain.ErrGatewayRejected), errors.Is(err, domain.ErrGatewayUnavailable):
			return nil, err
		case domain.IsValidation(err):
			return nil, fmt.Errorf("%v: %w", err, domain.ErrGatewayRejected)
		default:
			return nil, fmt.Errorf("gateway: %w", domain.ErrGatewayUnavailable)
		}
	}
	if intent == nil || intent.GatewayOrderRef == "" {
		return nil, fmt.Errorf("gateway returned no order reference: %w", domain.ErrGatewayUnavailable)
	}
	if intent.Amount != 0 && intent.Amount != o.Total {
		log.Error().Str("order_id", o.OrderID).Int64("expected", o.Total).Int64("got", intent.Amount).
			Msg("gateway intent amount mismatch")
		return nil, fmt.Errorf("gateway intent amount mismatch: %w", domain.ErrGatewayUnavailable)
	}

	out := *intent
	out.Amount = o.Total
	if out.Currency == "" {
		out.Currency = o.Currency
	}
	if out.KeyID == "" {
		out.KeyID = s.gateway.KeyID()
	}
	return &out, nil
}

// intentFor rebuilds the client checkout payload for the order's current
// gateway reference.
func (s *OrderService) intentFor(o *domain.Order) *domain.GatewayIntent {
	return &domain.GatewayIntent{
		GatewayOrderRef: o.GatewayOrderRef,
		Amount:          o.Total,
		Currency:        o.Currency,
		KeyID:           s.gateway.KeyID(),
	}
}

// VerifyPayment applies a gateway success callback. The signature is
// checked before anything is written. Replaying an accepted callback is a
// no-op that returns the order as it stands now.
func (s *OrderService) VerifyPayment(ctx context.Context, gatewayOrderRef, gatewayPaymentRef, signature string) (*domain.Order, error) {
	gatewayOrderRef = strings.TrimSpace(gatewayOrderRef)
	gatewayPaymentRef = strings.TrimSpace(gatewayPaymentRef)
	signature = strings.TrimSpace(signature)
	switch {
	case gatewayOrderRef == "":
		return nil, domain.NewValidationError("gatewayOrderRef", "is required")
	case gatewayPaymentRef == "":
		return nil, domain.NewValidationError("gatewayPaymentRef", "is required")
	case signature == "":
		return nil, domain.NewValidationError("signature", "is required")
	}

	o, err := s.repo.FindByGatewayOrderRef(ctx, gatewayOrderRef)
	if err != nil {
		return nil, s.storeFault(err, "find order by gateway ref", "")
	}

	if !s.gateway.VerifySignature(gatewayOrderRef, gatewayPaymentRef, signature) {
		s.rejectSignature(ctx, o, gatewayOrderRef, gatewayPaymentRef)
		return nil, domain.ErrSignatureInvalid
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		// This exact payment was already applied; the order may have moved
		// on into fulfillment or been cancelled since.
		if o.GatewayPaymentRef != "" && o.GatewayPaymentRef == gatewayPaymentRef && o.GatewayOrderRef == gatewayOrderRef {
			return o, nil
		}

		switch o.Status {
		case domain.StatusPaid:
			return nil, &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: domain.StatusPaid, Reason: "order already paid"}

		case domain.StatusPendingPayment, domain.StatusPaymentFailed:
			if o.GatewayOrderRef != gatewayOrderRef {
				return nil, fmt.Errorf("order %s: payment attempt superseded: %w", o.OrderID, domain.ErrConflict)
			}
			paid, err := s.transition(ctx, o, domain.StatusPaid, repository.StatusFields{
				GatewayPaymentRef:    gatewayPaymentRef,
				GatewaySignature:     signature,
				MatchGatewayOrderRef: gatewayOrderRef,
			})
			if err == nil {
				s.notify(domain.EventOrderPaid, paid)
				return paid, nil
			}
			if !errors.Is(err, domain.ErrConflict) {
				return nil, err
			}
			if o, err = s.load(ctx, o.OrderID); err != nil {
				return nil, err
			}

		default:
			if o.Status == domain.StatusCancelled {
				log.Warn().Str("order_id", o.OrderID).Str("gateway_payment_ref", gatewayPaymentRef).
					Msg("verified payment for a cancelled order, needs manual refund")
			}
			return nil, &domain.TransitionError{
				OrderID: o.OrderID,
				From:    o.Status,
				To:      domain.StatusPaid,
				Reason:  fmt.Sprintf("order is %s, payment cannot be applied", o.Status),
			}
		}
	}
	return nil, fmt.Errorf("order %s: verification kept losing to concurrent updates: %w", o.OrderID, domain.ErrConflict)
}

// rejectSignature records a failed attempt. Only the pending attempt bound
// to this reference is marked failed; a paid order is never touched.
func (s *OrderService) rejectSignature(ctx context.Context, o *domain.Order, gatewayOrderRef, gatewayPaymentRef string) {
	log.Warn().
		Str("event", "signature_invalid").
		Str("order_id", o.OrderID).
		Str("gateway_order_ref", gatewayOrderRef).
		Str("gateway_payment_ref", gatewayPaymentRef).
		Msg("payment signature rejected")

	if o.Status != domain.StatusPendingPayment || o.GatewayOrderRef != gatewayOrderRef {
		return
	}
	failed, err := s.transition(ctx, o, domain.StatusPaymentFailed, repository.StatusFields{MatchGatewayOrderRef: gatewayOrderRef})
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			log.Error().Err(err).Str("order_id", o.OrderID).Msg("could not record failed payment")
		}
		return
	}
	s.notify(domain.EventOrderPaymentFailed, failed)
}

// RetryPayment opens a fresh gateway intent and binds it to the order.
// The previous reference stops resolving, so callbacks for it can no
// longer pay the order.
func (s *OrderService) RetryPayment(ctx context.Context, orderID string, requester domain.Identity) (*CheckoutResult, error) {
	o, err := s.loadFor(ctx, orderID, requester)
	if err != nil {
		return nil, err
	}
	if err := s.checkRetryable(o); err != nil {
		return nil, err
	}

	intent, err := s.openIntent(ctx, o)
	if err != nil {
		return nil, &PaymentPendingError{OrderID: o.OrderID, Err: err}
	}

	current := o
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		updated, err := s.transition(ctx, current, domain.StatusPendingPayment, repositoryFieldsForIntent(intent, current.GatewayOrderRef))
		if err == nil {
			log.Info().Str("order_id", updated.OrderID).Int("attempt", updated.PaymentAttempts).Msg("payment retry opened")
			return &CheckoutResult{Order: updated, Intent: intent}, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}

		fresh, err := s.load(ctx, current.OrderID)
		if err != nil {
			return nil, err
		}
		if fresh.Status == domain.StatusPendingPayment && fresh.GatewayOrderRef != current.GatewayOrderRef {
			// a concurrent retry already bound its own intent
			log.Info().Str("order_id", fresh.OrderID).Str("unused_gateway_order_ref", intent.GatewayOrderRef).
				Msg("concurrent retry won, discarding intent")
			return &CheckoutResult{Order: fresh, Intent: s.intentFor(fresh)}, nil
		}
		if err := s.checkRetryable(fresh); err != nil {
			return nil, err
		}
		current = fresh
	}
	return nil, fmt.Errorf("order %s: retry kept losing to concurrent updates: %w", orderID, domain.ErrConflict)
}

func (s *OrderService) checkRetryable(o *domain.Order) error {
	switch {
	case o.PaymentMethod != domain.PaymentOnline:
		return &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: domain.StatusPendingPayment,
			Reason: "cash on delivery orders are not paid online"}
	case o.Status == domain.StatusPaid:
		return &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: domain.StatusPendingPayment,
			Reason: "order already paid"}
	case !domain.Retryable(o.Status):
		return &domain.TransitionError{OrderID: o.OrderID, From: o.Status, To: domain.StatusPendingPayment,
			Reason: fmt.Sprintf("order is %s, payment cannot be retried", o.Status)}
	}
	return nil
}
