package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petalroute/petalroute-backend/pkg/config"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()

	calc, err := NewCalculator(
		config.OrdersConfig{MinAmount: 1000, MaxAmount: 10000000},
		config.PointsConfig{PurchaseRate: "0.03", ReferralRate: "0.05", GrantValidityDays: 90},
	)
	require.NoError(t, err)
	return calc
}

func TestQuoteMerchantTransfer(t *testing.T) {
	calc := newTestCalculator(t)

	quote, err := calc.Quote(QuoteInput{
		Mode:           ModeMerchantTransfer,
		UnitPrice:      10000,
		Quantity:       4,
		AdditionalFee:  5000,
		CommissionRate: decimal.RequireFromString("0.25"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(40000), quote.Subtotal)
	assert.Equal(t, int64(45000), quote.Total)
	assert.Equal(t, int64(11250), quote.Commission)
	assert.Equal(t, int64(33750), quote.Net)
	assert.Zero(t, quote.PointBack)
}

func TestQuoteCommissionTruncatesTowardZero(t *testing.T) {
	calc := newTestCalculator(t)

	// 33333 * 0.25 = 8333.25, must floor to 8333
	quote, err := calc.Quote(QuoteInput{
		Mode:           ModeMerchantTransfer,
		UnitPrice:      33333,
		Quantity:       1,
		CommissionRate: decimal.RequireFromString("0.25"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(8333), quote.Commission)
	assert.Equal(t, quote.Total, quote.Commission+quote.Net)
}

func TestQuoteCustomerPurchasePointBack(t *testing.T) {
	calc := newTestCalculator(t)

	quote, err := calc.Quote(QuoteInput{
		Mode:      ModeCustomerPurchase,
		UnitPrice: 50000,
		Quantity:  2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100000), quote.Total)
	assert.Zero(t, quote.Commission)
	assert.Equal(t, quote.Total, quote.Net)
	assert.Equal(t, int64(3000), quote.PointBack)
}

func TestQuoteCustomerPurchaseReferralRate(t *testing.T) {
	calc := newTestCalculator(t)

	quote, err := calc.Quote(QuoteInput{
		Mode:        ModeCustomerPurchase,
		UnitPrice:   100000,
		Quantity:    1,
		HasReferrer: true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), quote.PointBack)
}

func TestQuoteDiscountSuppressesPointBack(t *testing.T) {
	calc := newTestCalculator(t)

	quote, err := calc.Quote(QuoteInput{
		Mode:            ModeCustomerPurchase,
		UnitPrice:       100000,
		Quantity:        1,
		DiscountApplied: true,
		HasReferrer:     true,
	})
	require.NoError(t, err)

	assert.Zero(t, quote.PointBack)
}

func TestQuoteEnforcesBounds(t *testing.T) {
	calc := newTestCalculator(t)

	cases := []struct {
		name      string
		unitPrice int64
		quantity  int
	}{
		{name: "below minimum", unitPrice: 500, quantity: 1},
		{name: "above maximum", unitPrice: 10000001, quantity: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Quote(QuoteInput{
				Mode:      ModeCustomerPurchase,
				UnitPrice: tc.unitPrice,
				Quantity:  tc.quantity,
			})
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestQuoteRejectsInvalidInput(t *testing.T) {
	calc := newTestCalculator(t)

	cases := []struct {
		name  string
		input QuoteInput
	}{
		{name: "unknown mode", input: QuoteInput{Mode: "bulk", UnitPrice: 1000, Quantity: 1}},
		{name: "negative unit price", input: QuoteInput{Mode: ModeCustomerPurchase, UnitPrice: -1, Quantity: 1}},
		{name: "zero quantity", input: QuoteInput{Mode: ModeCustomerPurchase, UnitPrice: 1000, Quantity: 0}},
		{name: "negative fee", input: QuoteInput{Mode: ModeCustomerPurchase, UnitPrice: 1000, Quantity: 1, AdditionalFee: -5}},
		{name: "rate at one", input: QuoteInput{Mode: ModeMerchantTransfer, UnitPrice: 1000, Quantity: 1, CommissionRate: decimal.NewFromInt(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Quote(tc.input)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}
