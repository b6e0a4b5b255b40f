package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxListLimit = 200

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	for i := range order.Items {
		order.Items[i].Position = i
		order.Items[i].OrderID = order.OrderID
	}

	// Order and line items go in one transaction so a failed item insert
	// leaves no half-written order behind.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("order %s: %w", order.OrderID, domain.ErrConflict)
		}
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("repository: failed to insert order")
		return fmt.Errorf("repository: insert order %s: %w", order.OrderID, err)
	}

	return nil
}

func (r *orderRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *orderRepo) FindByGatewayOrderRef(ctx context.Context, ref string) (*domain.Order, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, "gateway_order_ref = ?", ref)
}

func (r *orderRepo) findOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var o domain.Order
	err := r.withItems(r.db.WithContext(ctx)).Where(query, arg).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repository: find order where %s: %w", query, err)
	}
	return &o, nil
}

func (r *orderRepo) FindByBuyer(ctx context.Context, buyer domain.Identity, limit int) ([]domain.Order, error) {
	q := r.withItems(r.db.WithContext(ctx))
	email := domain.NormalizeEmail(buyer.Email)
	// Same precedence as Order.OwnedBy: the user id decides when both
	// sides carry one, the email only matches orders placed without one.
	switch {
	case buyer.UserID != "" && email != "":
		q = q.Where("buyer_user_id = ? OR ((buyer_user_id = '' OR buyer_user_id IS NULL) AND buyer_email = ?)", buyer.UserID, email)
	case buyer.UserID != "":
		q = q.Where("buyer_user_id = ?", buyer.UserID)
	case email != "":
		q = q.Where("buyer_email = ?", email)
	default:
		return []domain.Order{}, nil
	}

	out := make([]domain.Order, 0)
	if err := q.Order("created_at DESC, id DESC").Limit(clampLimit(limit)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("repository: find orders for buyer: %w", err)
	}
	return out, nil
}

func (r *orderRepo) List(ctx context.Context, filter repository.ListFilter) ([]domain.Order, error) {
	q := r.withItems(r.db.WithContext(ctx))
	if filter.Status.Valid() {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	out := make([]domain.Order, 0)
	if err := q.Order("created_at DESC, id DESC").Limit(clampLimit(filter.Limit)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("repository: list orders: %w", err)
	}
	return out, nil
}

func (r *orderRepo) CompareAndSetStatus(ctx context.Context, orderID string, expected, next domain.OrderStatus, fields repository.StatusFields) (*domain.Order, error) {
	updates := map[string]any{
		"status":     next,
		"updated_at": time.Now().UTC(),
	}
	if fields.GatewayOrderRef != "" {
		updates["gateway_order_ref"] = fields.GatewayOrderRef
	}
	if fields.GatewayPaymentRef != "" {
		updates["gateway_payment_ref"] = fields.GatewayPaymentRef
	}
	if fields.GatewaySignature != "" {
		updates["gateway_signature"] = fields.GatewaySignature
	}
	if fields.IncrementAttempts {
		updates["payment_attempts"] = gorm.Expr("payment_attempts + 1")
	}

	// A single conditional UPDATE: the row either matches the expectation
	// and changes, or nothing is written.
	q := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("order_id = ? AND status = ?", orderID, expected)
	if fields.MatchGatewayOrderRef != "" {
		q = q.Where("gateway_order_ref = ?", fields.MatchGatewayOrderRef)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		log.Error().Err(res.Error).Str("order_id", orderID).Stringer("expected", expected).Stringer("next", next).
			Msg("repository: compare-and-set failed")
		return nil, fmt.Errorf("repository: update order %s: %w", orderID, res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Order{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("repository: check order %s: %w", orderID, err)
		}
		if count == 0 {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("order %s no longer %s: %w", orderID, expected, domain.ErrConflict)
	}

	return r.FindByOrderID(ctx, orderID)
}

func (r *orderRepo) withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
