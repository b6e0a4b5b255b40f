package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFlat    CouponKind = "flat"
)

// Coupon amounts (Value for flat coupons, MinSubtotal) are major units.
type Coupon struct {
	Code        string          `yaml:"code"`
	Kind        CouponKind      `yaml:"kind"`
	Value       decimal.Decimal `yaml:"value"`
	MinSubtotal decimal.Decimal `yaml:"minSubtotal"`
	Active      *bool           `yaml:"active"`
}

type couponFile struct {
	Coupons []Coupon `yaml:"coupons"`
}

type CouponBook struct {
	coupons map[string]Coupon
}

func NewCouponBook(coupons ...Coupon) (*CouponBook, error) {
	b := &CouponBook{coupons: make(map[string]Coupon, len(coupons))}
	for _, c := range coupons {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			return nil, fmt.Errorf("coupons: empty code")
		}
		switch c.Kind {
		case CouponPercent:
			if !c.Value.IsPositive() || c.Value.GreaterThan(decimal.NewFromInt(100)) {
				return nil, fmt.Errorf("coupons: %s: percent must be in (0, 100]", code)
			}
		case CouponFlat:
			if !c.Value.IsPositive() {
				return nil, fmt.Errorf("coupons: %s: flat value must be positive", code)
			}
		default:
			return nil, fmt.Errorf("coupons: %s: unknown kind %q", code, c.Kind)
		}
		c.Code = code
		b.coupons[code] = c
	}
	return b, nil
}

// LoadCouponBook reads a YAML file of the form `coupons: [{code, kind, value}]`.
// An empty path yields an empty book.
func LoadCouponBook(path string) (*CouponBook, error) {
	if path == "" {
		return NewCouponBook()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coupons: read %s: %w", path, err)
	}
	var f couponFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("coupons: parse %s: %w", path, err)
	}
	return NewCouponBook(f.Coupons...)
}

// Discount returns the discount in minor units for code applied to
// subtotal, never more than subtotal. Unknown or ineligible codes are
// validation errors.
func (b *CouponBook) Discount(code string, subtotal int64) (int64, error) {
	key := strings.ToUpper(strings.TrimSpace(code))
	c, ok := b.coupons[key]
	if !ok || (c.Active != nil && !*c.Active) {
		return 0, domain.NewValidationError("couponCode", fmt.Sprintf("coupon %q is not valid", code))
	}

	sub := decimal.NewFromInt(subtotal)
	if floor := c.MinSubtotal.Mul(minorUnits); sub.LessThan(floor) {
		return 0, domain.NewValidationError("couponCode", fmt.Sprintf("coupon %s needs a subtotal of at least %s", key, c.MinSubtotal.StringFixed(2)))
	}

	var off decimal.Decimal
	switch c.Kind {
	case CouponPercent:
		off = sub.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(0)
	case CouponFlat:
		off = c.Value.Mul(minorUnits).Round(0)
	}
	if off.GreaterThan(sub) {
		off = sub
	}
	return off.IntPart(), nil
}

// FlatShipping charges Fee below FreeAbove and nothing at or above it. A
// zero FreeAbove means the fee always applies. Amounts are minor units.
type FlatShipping struct {
	Fee       int64
	FreeAbove int64
}

func NewFlatShipping(fee, freeAbove decimal.Decimal) FlatShipping {
	return FlatShipping{
		Fee:       fee.Mul(minorUnits).Round(0).IntPart(),
		FreeAbove: freeAbove.Mul(minorUnits).Round(0).IntPart(),
	}
}

func (s FlatShipping) FeeFor(subtotalAfterDiscount int64) int64 {
	if s.Fee <= 0 {
		return 0
	}
	if s.FreeAbove > 0 && subtotalAfterDiscount >= s.FreeAbove {
		return 0
	}
	return s.Fee
}
