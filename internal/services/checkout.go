package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	maxLineItems      = 50
	maxQuantity       = 100
	maxCreateAttempts = 3
	catalogFanOut     = 8
)

type LineItemInput struct {
	ProductRef string
	Variant    string
	Quantity   int
}

// SubmitOrderInput is the checkout request. Prices are never taken from
// the caller; every unit price comes from the catalog.
type SubmitOrderInput struct {
	Name          string
	Email         string
	Phone         string
	Address       string
	Items         []LineItemInput
	PaymentMethod domain.PaymentMethod
	CouponCode    string
}

type CheckoutResult struct {
	Order  *domain.Order
	Intent *domain.GatewayIntent
}

// SubmitOrder prices and stores a new order. Cash on delivery orders are
// stored as PendingCOD. Online orders are stored as Created and moved to
// PendingPayment once the gateway intent exists; if the gateway fails the
// order stays Created and a *PaymentPendingError is returned.
func (s *OrderService) SubmitOrder(ctx context.Context, buyer domain.Identity, in SubmitOrderInput) (*CheckoutResult, error) {
	order, err := s.buildOrder(buyer, in)
	if err != nil {
		return nil, err
	}

	if err := s.priceItems(ctx, order); err != nil {
		return nil, err
	}
	if err := s.applyTotals(order, in.CouponCode); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, order); err != nil {
		return nil, err
	}
	log.Info().Str("order_id", order.OrderID).Str("payment_method", string(order.PaymentMethod)).
		Int64("total", order.Total).Msg("order created")
	s.notify(domain.EventOrderCreated, order)

	if order.PaymentMethod == domain.PaymentCOD {
		return &CheckoutResult{Order: order}, nil
	}

	intent, err := s.openIntent(ctx, order)
	if err != nil {
		return nil, &PaymentPendingError{OrderID: order.OrderID, Err: err}
	}

	updated, err := s.transition(ctx, order, domain.StatusPendingPayment, repositoryFieldsForIntent(intent, ""))
	if err == nil {
		return &CheckoutResult{Order: updated, Intent: intent}, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, err
	}

	// Something else moved the order between insert and intent, e.g. a
	// retry-payment that already attached its own intent.
	current, rerr := s.load(ctx, order.OrderID)
	if rerr != nil {
		return nil, rerr
	}
	if current.Status == domain.StatusPendingPayment {
		return &CheckoutResult{Order: current, Intent: s.intentFor(current)}, nil
	}
	return nil, &domain.TransitionError{
		OrderID: current.OrderID,
		From:    current.Status,
		To:      domain.StatusPendingPayment,
		Reason:  fmt.Sprintf("order is %s, payment cannot start", current.Status),
	}
}

func (s *OrderService) buildOrder(buyer domain.Identity, in SubmitOrderInput) (*domain.Order, error) {
	// The buyer is whoever the token says; a body email is only accepted
	// when it agrees with the account.
	email := domain.NormalizeEmail(buyer.Email)
	if email == "" {
		return nil, domain.NewValidationError("email", "the signed-in account has no email address")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.NewValidationError("email", "is not a valid address")
	}
	if given := domain.NormalizeEmail(in.Email); given != "" && given != email {
		return nil, domain.NewValidationError("email", "does not match the signed-in account")
	}
	if !in.PaymentMethod.Valid() {
		return nil, domain.NewValidationError("paymentMethod", fmt.Sprintf("must be %s or %s", domain.PaymentOnline, domain.PaymentCOD))
	}
	if len(in.Items) == 0 {
		return nil, domain.NewValidationError("items", "at least one line item is required")
	}
	if len(in.Items) > maxLineItems {
		return nil, domain.NewValidationError("items", fmt.Sprintf("at most %d line items", maxLineItems))
	}

	items := make([]domain.LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		ref := strings.TrimSpace(it.ProductRef)
		if ref == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("items[%d].productRef", i), "is required")
		}
		if it.Quantity < 1 || it.Quantity > maxQuantity {
			return nil, domain.NewValidationError(fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("must be between 1 and %d", maxQuantity))
		}
		items = append(items, domain.LineItem{
			ProductRef: ref,
			Variant:    strings.TrimSpace(it.Variant),
			Quantity:   it.Quantity,
		})
	}

	now := s.now()
	return &domain.Order{
		Buyer: domain.Buyer{
			UserID:  buyer.UserID,
			Email:   email,
			Name:    strings.TrimSpace(in.Name),
			Phone:   strings.TrimSpace(in.Phone),
			Address: strings.TrimSpace(in.Address),
		},
		Items:         items,
		Currency:      s.cfg.Currency,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.InitialStatus(in.PaymentMethod),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// priceItems fetches each distinct product once, concurrently, and sets
// the unit price of every line from the catalog.
func (s *OrderService) priceItems(ctx context.Context, order *domain.Order) error {
	var (
		mu       sync.Mutex
		products = make(map[string]*infra.ProductInfo)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogFanOut)
	seen := make(map[string]bool)
	for _, it := range order.Items {
		ref := it.ProductRef
		if seen[ref] {
			continue
		}
		seen[ref] = true

		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, ref)
			if err != nil {
				if errors.Is(err, domain.ErrCatalogUnavailable) || domain.IsValidation(err) {
					return err
				}
				log.Error().Err(err).Str("product_ref", ref).Msg("catalog lookup failed")
				return fmt.Errorf("product %s: %w", ref, domain.ErrCatalogUnavailable)
			}
			if p == nil {
				return domain.NewValidationError("productRef", fmt.Sprintf("product %s not found", ref))
			}
			if !p.Active() {
				return domain.NewValidationError("productRef", fmt.Sprintf("product %s is not available", ref))
			}
			mu.Lock()
			products[ref] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range order.Items {
		it := &order.Items[i]
		p := products[it.ProductRef]
		price, err := p.UnitPrice(it.Variant)
		if err != nil {
			return err
		}
		it.UnitPrice = price
		it.Name = p.Name
	}
	return nil
}

func (s *OrderService) applyTotals(order *domain.Order, couponCode string) error {
	var subtotal int64
	for _, it := range order.Items {
		subtotal += it.Amount()
	}

	var discount int64
	if code := strings.TrimSpace(couponCode); code != "" {
		if s.cfg.Coupons == nil {
			return domain.NewValidationError("couponCode", fmt.Sprintf("coupon %q is not valid", code))
		}
		d, err := s.cfg.Coupons.Discount(code, subtotal)
		if err != nil {
			return err
		}
		discount = d
		order.Metadata = datatypes.JSONMap{
			"couponCode":     strings.ToUpper(code),
			"couponDiscount": d,
		}
	}

	var shipping int64
	if s.cfg.Shipping != nil {
		shipping = s.cfg.Shipping.FeeFor(subtotal - discount)
	}

	order.Subtotal = subtotal
	order.Discount = discount
	order.ShippingFee = shipping
	order.Total = subtotal - discount + shipping

	if order.Total <= 0 {
		return domain.NewValidationError("total", "order total must be positive")
	}
	if !order.BalancedTotal() {
		return domain.NewValidationError("total", "order total does not balance")
	}
	return nil
}

// persist assigns an id and inserts the order. A duplicate id can only
// come from a reseeded counter; it is retried with a fresh id.
func (s *OrderService) persist(ctx context.Context, order *domain.Order) error {
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		id, err := s.ids.Next(ctx)
		if err != nil {
			log.Error().Err(err).Msg("order id generation failed")
			return fmt.Errorf("generate order id: %w", domain.ErrStoreUnavailable)
		}
		order.OrderID = id

		err = s.repo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return s.storeFault(err, "create order", id)
		}
		log.Warn().Str("order_id", id).Int("attempt", attempt).Msg("order id already taken, drawing a new one")
	}
	return fmt.Errorf("create order: no free order id after %d attempts: %w", maxCreateAttempts, domain.ErrStoreUnavailable)
}
