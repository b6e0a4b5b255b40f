package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"

	"github.com/shopspring/decimal"
)

var minorUnits = decimal.NewFromInt(100)

type ProductSize struct {
	Value           decimal.Decimal `json:"value"`
	Unit            string          `json:"unit"`
	PriceMultiplier decimal.Decimal `json:"priceMultiplier"`
}

func (s ProductSize) Label() string {
	return s.Value.String() + s.Unit
}

// ProductInfo mirrors the catalog service payload. Price is in major units.
type ProductInfo struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Sizes    []ProductSize   `json:"sizes"`
	IsActive *bool           `json:"isActive,omitempty"`
}

func (p *ProductInfo) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

// UnitPrice resolves the price of one unit of variant in minor units,
// rounding half up. An empty variant is the base price.
func (p *ProductInfo) UnitPrice(variant string) (int64, error) {
	price := p.Price
	if v := strings.TrimSpace(variant); v != "" {
		size, ok := p.size(v)
		if !ok {
			return 0, domain.NewValidationError("variant", fmt.Sprintf("%q is not offered for %s", variant, p.Name))
		}
		if size.PriceMultiplier.IsPositive() {
			price = price.Mul(size.PriceMultiplier)
		}
	}
	minor := price.Mul(minorUnits).Round(0)
	if !minor.IsPositive() {
		return 0, domain.NewValidationError("price", fmt.Sprintf("%s has no price", p.Name))
	}
	return minor.IntPart(), nil
}

func (p *ProductInfo) size(label string) (ProductSize, bool) {
	for _, s := range p.Sizes {
		if strings.EqualFold(s.Label(), label) || strings.EqualFold(s.Value.String()+" "+s.Unit, label) {
			return s, true
		}
	}
	return ProductSize{}, false
}

type ProductClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	return &ProductClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetProduct returns (nil, nil) when the catalog does not know ref.
func (c *ProductClient) GetProduct(ctx context.Context, ref string) (*ProductInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(ref)), nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %s: %v: %w", ref, err, domain.ErrCatalogUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: product service returned status %d: %w", resp.StatusCode, domain.ErrCatalogUnavailable)
	}

	var p ProductInfo
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("catalog: decode product %s: %v: %w", ref, err, domain.ErrCatalogUnavailable)
	}
	if p.ID == "" {
		p.ID = ref
	}
	return &p, nil
}
