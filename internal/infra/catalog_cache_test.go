package infra

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetProduct(ctx context.Context, ref string) (*ProductInfo, error) {
	args := m.Called(ctx, ref)
	p, _ := args.Get(0).(*ProductInfo)
	return p, args.Error(1)
}

func TestCachedCatalog_MissThenStore(t *testing.T) {
	ctx := context.Background()
	cache := new(mockCache)
	next := new(mockCatalog)
	product := &ProductInfo{ID: "p1", Name: "Oud", Price: decimal.NewFromInt(100)}

	cache.On("Get", ctx, "catalog:product:p1").Return(redis.NewStringResult("", redis.Nil)).Once()
	next.On("GetProduct", mock.Anything, "p1").Return(product, nil).Once()
	cache.On("Set", mock.Anything, "catalog:product:p1", mock.Anything, time.Minute).Return(redis.NewStatusResult("OK", nil)).Once()

	c := NewCachedCatalog(next, cache, time.Minute)
	got, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Oud", got.Name)

	cache.AssertExpectations(t)
	next.AssertExpectations(t)
}

func TestCachedCatalog_Hit(t *testing.T) {
	ctx := context.Background()
	cache := new(mockCache)
	next := new(mockCatalog)

	raw, err := json.Marshal(&ProductInfo{ID: "p1", Name: "Oud", Price: decimal.NewFromInt(100)})
	require.NoError(t, err)
	cache.On("Get", ctx, "catalog:product:p1").Return(redis.NewStringResult(string(raw), nil)).Once()

	c := NewCachedCatalog(next, cache, time.Minute)
	got, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(got.Price))

	next.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
}

func TestCachedCatalog_CacheDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	cache := new(mockCache)
	next := new(mockCatalog)

	cache.On("Get", ctx, "catalog:product:p1").Return(redis.NewStringResult("", errors.New("connection refused")))
	cache.On("Set", mock.Anything, "catalog:product:p1", mock.Anything, time.Minute).Return(redis.NewStatusResult("", errors.New("connection refused")))
	next.On("GetProduct", mock.Anything, "p1").Return(&ProductInfo{ID: "p1", Name: "Oud"}, nil)

	got, err := NewCachedCatalog(next, cache, time.Minute).GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Oud", got.Name)
}

func TestCachedCatalog_UnknownNotCached(t *testing.T) {
	ctx := context.Background()
	cache := new(mockCache)
	next := new(mockCatalog)

	cache.On("Get", ctx, "catalog:product:gone").Return(redis.NewStringResult("", redis.Nil))
	next.On("GetProduct", mock.Anything, "gone").Return(nil, nil)

	got, err := NewCachedCatalog(next, cache, time.Minute).GetProduct(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, got)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedCatalog_SharedFetchOutlivesCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := new(mockCache)
	next := new(mockCatalog)
	stored := make(chan struct{})

	cache.On("Get", mock.Anything, "catalog:product:p1").Return(redis.NewStringResult("", redis.Nil))
	next.On("GetProduct", mock.Anything, "p1").Run(func(args mock.Arguments) {
		cancel()
		fetchCtx := args.Get(0).(context.Context)
		assert.NoError(t, fetchCtx.Err())
		_, hasDeadline := fetchCtx.Deadline()
		assert.True(t, hasDeadline)
	}).Return(&ProductInfo{ID: "p1", Name: "Oud"}, nil).Once()
	cache.On("Set", mock.Anything, "catalog:product:p1", mock.Anything, time.Minute).Run(func(args mock.Arguments) {
		assert.NoError(t, args.Get(0).(context.Context).Err())
		close(stored)
	}).Return(redis.NewStatusResult("OK", nil)).Once()

	_, _ = NewCachedCatalog(next, cache, time.Minute).GetProduct(ctx, "p1")

	select {
	case <-stored:
	case <-time.After(2 * time.Second):
		t.Fatal("product was never cached")
	}
	next.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestCachedCatalog_CallerGivesUpWhileFetchRuns(t *testing.T) {
	cache := new(mockCache)
	next := new(mockCatalog)
	release := make(chan struct{})
	defer close(release)

	cache.On("Get", mock.Anything, "catalog:product:p1").Return(redis.NewStringResult("", redis.Nil))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(redis.NewStatusResult("OK", nil)).Maybe()
	next.On("GetProduct", mock.Anything, "p1").Run(func(mock.Arguments) { <-release }).Return(&ProductInfo{ID: "p1"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewCachedCatalog(next, cache, time.Minute).GetProduct(ctx, "p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
