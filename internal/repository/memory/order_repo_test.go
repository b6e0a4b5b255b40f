package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(orderID, email string, createdAt time.Time) *domain.Order {
	return &domain.Order{
		OrderID:       orderID,
		Buyer:         domain.Buyer{Email: email},
		Items:         []domain.LineItem{{ProductRef: "p1", Quantity: 1, UnitPrice: 1000}},
		Subtotal:      1000,
		Total:         1000,
		Currency:      "INR",
		PaymentMethod: domain.PaymentOnline,
		Status:        domain.StatusCreated,
		CreatedAt:     createdAt,
	}
}

func TestStore_CreateFindAndIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	o := newOrder("EE20250001", "a@example.com", time.Now())
	require.NoError(t, s.Create(ctx, o))
	assert.ErrorIs(t, s.Create(ctx, newOrder("EE20250001", "b@example.com", time.Now())), domain.ErrConflict)

	got, err := s.FindByOrderID(ctx, "EE20250001")
	require.NoError(t, err)
	got.Items[0].Quantity = 99
	got.Status = domain.StatusPaid

	again, err := s.FindByOrderID(ctx, "EE20250001")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
	assert.Equal(t, domain.StatusCreated, again.Status)

	_, err = s.FindByOrderID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Create(ctx, newOrder("EE20250001", "a@example.com", time.Now())))

	updated, err := s.CompareAndSetStatus(ctx, "EE20250001", domain.StatusCreated, domain.StatusPendingPayment,
		repository.StatusFields{GatewayOrderRef: "order_1", IncrementAttempts: true})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.PaymentAttempts)

	byRef, err := s.FindByGatewayOrderRef(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, "EE20250001", byRef.OrderID)

	_, err = s.CompareAndSetStatus(ctx, "EE20250001", domain.StatusCreated, domain.StatusCancelled, repository.StatusFields{})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.CompareAndSetStatus(ctx, "EE20250001", domain.StatusPendingPayment, domain.StatusPaid,
		repository.StatusFields{MatchGatewayOrderRef: "order_0"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.CompareAndSetStatus(ctx, "nope", domain.StatusCreated, domain.StatusPaid, repository.StatusFields{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_FindByBuyerAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, newOrder("EE20250001", "a@example.com", base)))
	require.NoError(t, s.Create(ctx, newOrder("EE20250002", "b@example.com", base.Add(time.Hour))))
	require.NoError(t, s.Create(ctx, newOrder("EE20250003", "a@example.com", base.Add(2*time.Hour))))

	mine, err := s.FindByBuyer(ctx, domain.Identity{Email: " A@example.com"}, 100)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "EE20250003", mine[0].OrderID)

	_, err = s.CompareAndSetStatus(ctx, "EE20250002", domain.StatusCreated, domain.StatusCancelled, repository.StatusFields{})
	require.NoError(t, err)

	cancelled, err := s.List(ctx, repository.ListFilter{Status: domain.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "EE20250002", cancelled[0].OrderID)

	page, err := s.List(ctx, repository.ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "EE20250002", page[0].OrderID)
	assert.Equal(t, "EE20250001", page[1].OrderID)
}

func TestStore_NextSeedsAndIsUnique(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Create(ctx, newOrder("EE20250012", "a@example.com", time.Now())))

	first, err := s.Next(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(13), first)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int64]bool{first: true}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Next(ctx, 2025)
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 51)
}

func TestStore_FindByBuyerAgreesWithOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	own := newOrder("EE20250001", "a@example.com", base)
	own.Buyer.UserID = "u1"
	other := newOrder("EE20250002", "a@example.com", base.Add(time.Hour))
	other.Buyer.UserID = "u9"
	guest := newOrder("EE20250003", "a@example.com", base.Add(2*time.Hour))
	for _, o := range []*domain.Order{own, other, guest} {
		require.NoError(t, s.Create(ctx, o))
	}

	me := domain.Identity{UserID: "u1", Email: "a@example.com"}
	mine, err := s.FindByBuyer(ctx, me, 100)
	require.NoError(t, err)

	var ids []string
	for _, o := range mine {
		assert.True(t, o.OwnedBy(me), o.OrderID)
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []string{"EE20250003", "EE20250001"}, ids)
}
