package infra

import (
	"context"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
)

type CatalogClientInterface interface {
	GetProduct(ctx context.Context, ref string) (*ProductInfo, error)
}

// PaymentGateway opens payment intents and checks the signatures the
// gateway hands back to the client.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, reference string) (*domain.GatewayIntent, error)
	VerifySignature(gatewayOrderRef, gatewayPaymentRef, signature string) bool
	KeyID() string
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

var (
	_ CatalogClientInterface = (*ProductClient)(nil)
	_ CatalogClientInterface = (*CachedCatalog)(nil)
	_ EventPublisher         = NopPublisher{}
)
