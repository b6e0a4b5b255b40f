// Package memory is a process-local order store for single-instance runs
// and tests. It offers the same guarantees as the SQL store within one
// process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"gorm.io/datatypes"
)

const maxListLimit = 200

type Store struct {
	mu        sync.Mutex
	nextRowID uint64
	orders    map[string]*domain.Order
	byRef     map[string]string
	sequences map[int]int64
	now       func() time.Time
}

var (
	_ repository.OrderRepository    = (*Store)(nil)
	_ repository.SequenceRepository = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		orders:    make(map[string]*domain.Order),
		byRef:     make(map[string]string),
		sequences: make(map[int]int64),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.OrderID]; exists {
		return fmt.Errorf("order %s: %w", order.OrderID, domain.ErrConflict)
	}

	now := s.now()
	s.nextRowID++
	order.ID = s.nextRowID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	for i := range order.Items {
		order.Items[i].Position = i
		order.Items[i].OrderID = order.OrderID
	}

	s.orders[order.OrderID] = cloneOrder(order)
	if order.GatewayOrderRef != "" {
		s.byRef[order.GatewayOrderRef] = order.OrderID
	}
	return nil
}

func (s *Store) FindByOrderID(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) FindByGatewayOrderRef(_ context.Context, ref string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byRef[ref]
	if !ok || ref == "" {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *Store) FindByBuyer(_ context.Context, buyer domain.Identity, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := domain.NormalizeEmail(buyer.Email)
	if buyer.UserID == "" && email == "" {
		return []domain.Order{}, nil
	}
	return s.collect(func(o *domain.Order) bool {
		return o.OwnedBy(buyer)
	}, 0, limit), nil
}

func (s *Store) List(_ context.Context, filter repository.ListFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(o *domain.Order) bool {
		return !filter.Status.Valid() || o.Status == filter.Status
	}, filter.Offset, filter.Limit), nil
}

func (s *Store) CompareAndSetStatus(_ context.Context, orderID string, expected, next domain.OrderStatus, fields repository.StatusFields) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != expected {
		return nil, fmt.Errorf("order %s no longer %s: %w", orderID, expected, domain.ErrConflict)
	}
	if fields.MatchGatewayOrderRef != "" && o.GatewayOrderRef != fields.MatchGatewayOrderRef {
		return nil, fmt.Errorf("order %s gateway reference moved on: %w", orderID, domain.ErrConflict)
	}

	o.Status = next
	o.UpdatedAt = s.now()
	if fields.GatewayOrderRef != "" {
		// only the current reference resolves, as with the SQL store
		delete(s.byRef, o.GatewayOrderRef)
		o.GatewayOrderRef = fields.GatewayOrderRef
		s.byRef[fields.GatewayOrderRef] = orderID
	}
	if fields.GatewayPaymentRef != "" {
		o.GatewayPaymentRef = fields.GatewayPaymentRef
	}
	if fields.GatewaySignature != "" {
		o.GatewaySignature = fields.GatewaySignature
	}
	if fields.IncrementAttempts {
		o.PaymentAttempts++
	}
	return cloneOrder(o), nil
}

func (s *Store) Next(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seeded := s.sequences[year]; !seeded {
		s.sequences[year] = s.highestIssued(year)
	}
	s.sequences[year]++
	return s.sequences[year], nil
}

func (s *Store) HighestIssued(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestIssued(year), nil
}

func (s *Store) highestIssued(year int) int64 {
	var highest int64
	prefix := domain.OrderIDPrefix(year)
	for id := range s.orders {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if seq, ok := domain.ParseOrderSequence(id, year); ok && seq > highest {
			highest = seq
		}
	}
	return highest
}

// collect must be called with mu held.
func (s *Store) collect(match func(*domain.Order) bool, offset, limit int) []domain.Order {
	matched := make([]*domain.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	out := make([]domain.Order, 0, limit)
	for i := offset; i < len(matched) && len(out) < limit; i++ {
		if i < 0 {
			continue
		}
		out = append(out, *cloneOrder(matched[i]))
	}
	return out
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.LineItem(nil), o.Items...)
	if o.Metadata != nil {
		c.Metadata = make(datatypes.JSONMap, len(o.Metadata))
		for k, v := range o.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
