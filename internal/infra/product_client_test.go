package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductClient_GetProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/products/p1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"_id":"p1","name":"Oud","price":1499.5,"sizes":[{"value":50,"unit":"ml","priceMultiplier":1},{"value":100,"unit":"ml","priceMultiplier":1.8}]}`))
		case "/api/products/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL+"/api/", time.Second)

	p, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Oud", p.Name)
	assert.True(t, p.Active())
	require.Len(t, p.Sizes, 2)

	missing, err := c.GetProduct(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = c.GetProduct(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestProductClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewProductClient(url, 200*time.Millisecond).GetProduct(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestProductInfo_UnitPrice(t *testing.T) {
	p := &ProductInfo{
		Name:  "Oud",
		Price: decimal.RequireFromString("1499.50"),
		Sizes: []ProductSize{
			{Value: decimal.NewFromInt(50), Unit: "ml", PriceMultiplier: decimal.NewFromInt(1)},
			{Value: decimal.NewFromInt(100), Unit: "ml", PriceMultiplier: decimal.RequireFromString("1.8")},
			{Value: decimal.RequireFromString("7.5"), Unit: "ml", PriceMultiplier: decimal.RequireFromString("0.333")},
		},
	}

	tests := []struct {
		name    string
		variant string
		want    int64
		wantErr bool
	}{
		{name: "base price", variant: "", want: 149950},
		{name: "unit multiplier", variant: "50ml", want: 149950},
		{name: "case insensitive", variant: "100ML", want: 269910},
		{name: "spaced label", variant: "100 ml", want: 269910},
		{name: "rounds half up", variant: "7.5ml", want: 49933},
		{name: "unknown size", variant: "30ml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.UnitPrice(tt.variant)
			if tt.wantErr {
				assert.True(t, domain.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProductInfo_ZeroPriceRejected(t *testing.T) {
	_, err := (&ProductInfo{Name: "Sample"}).UnitPrice("")
	assert.True(t, domain.IsValidation(err))
}
