package mocks

import (
	"context"
	"sync"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockCatalogClient struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockPaymentGateway struct {
	mock.Mock
}

type MockIDGenerator struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockCatalogClient) GetProduct(ctx context.Context, ref string) (*infra.ProductInfo, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockPaymentGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, reference string) (*domain.GatewayIntent, error) {
	args := m.Called(ctx, amountMinor, currency, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayIntent), args.Error(1)
}

func (m *MockPaymentGateway) VerifySignature(gatewayOrderRef, gatewayPaymentRef, signature string) bool {
	return m.Called(gatewayOrderRef, gatewayPaymentRef, signature).Bool(0)
}

func (m *MockPaymentGateway) KeyID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIDGenerator) Next(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByGatewayOrderRef(ctx context.Context, ref string) (*domain.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByBuyer(ctx context.Context, buyer domain.Identity, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, buyer, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter repository.ListFilter) ([]domain.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) CompareAndSetStatus(ctx context.Context, orderID string, expected, next domain.OrderStatus, fields repository.StatusFields) (*domain.Order, error) {
	args := m.Called(ctx, orderID, expected, next, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// RecordingPublisher keeps every published event for assertions.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []domain.OrderEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, _ string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if evt, ok := data.(domain.OrderEvent); ok {
		p.Events = append(p.Events, evt)
	}
	return p.Err
}

func (p *RecordingPublisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Type)
	}
	return out
}

var (
	_ repository.OrderRepository = (*MockOrderRepository)(nil)
	_ infra.CatalogClientInterface = (*MockCatalogClient)(nil)
	_ infra.PaymentGateway         = (*MockPaymentGateway)(nil)
	_ infra.EventPublisher         = (*MockPublisher)(nil)
	_ infra.EventPublisher         = (*RecordingPublisher)(nil)
)
