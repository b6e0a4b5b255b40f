package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCouponBook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupons.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
coupons:
  - code: welcome10
    kind: percent
    value: 10
  - code: FLAT200
    kind: flat
    value: 200
    minSubtotal: 1000
  - code: OLD
    kind: flat
    value: 50
    active: false
`), 0o600))

	book, err := LoadCouponBook(path)
	require.NoError(t, err)

	tests := []struct {
		name     string
		code     string
		subtotal int64
		want     int64
		invalid  bool
	}{
		{name: "percent", code: "WELCOME10", subtotal: 350000, want: 35000},
		{name: "percent rounds", code: "welcome10", subtotal: 12345, want: 1235},
		{name: "flat", code: "FLAT200", subtotal: 150000, want: 20000},
		{name: "below minimum", code: "FLAT200", subtotal: 99999, invalid: true},
		{name: "inactive", code: "OLD", subtotal: 100000, invalid: true},
		{name: "unknown", code: "NOPE", subtotal: 100000, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := book.Discount(tt.code, tt.subtotal)
			if tt.invalid {
				assert.True(t, domain.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCouponBook_FlatNeverExceedsSubtotal(t *testing.T) {
	book, err := NewCouponBook(Coupon{Code: "BIG", Kind: CouponFlat, Value: decimal.NewFromInt(500)})
	require.NoError(t, err)

	got, err := book.Discount("big", 30000)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), got)
}

func TestNewCouponBook_RejectsBadEntries(t *testing.T) {
	_, err := NewCouponBook(Coupon{Code: "X", Kind: CouponPercent, Value: decimal.NewFromInt(150)})
	assert.Error(t, err)

	_, err = NewCouponBook(Coupon{Code: "Y", Kind: "bogo", Value: decimal.NewFromInt(1)})
	assert.Error(t, err)

	empty, err := LoadCouponBook("")
	require.NoError(t, err)
	_, err = empty.Discount("ANY", 100)
	assert.True(t, domain.IsValidation(err))
}

func TestFlatShipping(t *testing.T) {
	s := NewFlatShipping(decimal.NewFromInt(99), decimal.NewFromInt(999))
	assert.Equal(t, int64(9900), s.FeeFor(50000))
	assert.Equal(t, int64(0), s.FeeFor(99900))
	assert.Equal(t, int64(0), FlatShipping{}.FeeFor(100))
	assert.Equal(t, int64(500), FlatShipping{Fee: 500}.FeeFor(1_000_000))
}
