package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/petalroute/petalroute-backend/pkg/config"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
)

// Mode selects which commission regime a quote is computed under. The two
// regimes share vocabulary but not semantics, so callers must name one
// explicitly.
type Mode string

const (
	// ModeMerchantTransfer prices a florist-to-florist order. The sender pays
	// zero commission at creation; commission is realized later on the
	// receiving merchant's settlement.
	ModeMerchantTransfer Mode = "merchant_transfer"
	// ModeCustomerPurchase prices a retail purchase. No upfront commission;
	// the buyer accrues point-back value instead.
	ModeCustomerPurchase Mode = "customer_purchase"
)

// IsValid reports whether the mode is one of the two named regimes.
func (m Mode) IsValid() bool {
	return m == ModeMerchantTransfer || m == ModeCustomerPurchase
}

// QuoteInput carries everything needed to price one order.
type QuoteInput struct {
	Mode          Mode
	UnitPrice     int64
	Quantity      int
	AdditionalFee int64

	// CommissionRate is the receiving merchant's rate. Only consulted in
	// merchant-transfer mode, where it projects the settlement-time
	// commission.
	CommissionRate decimal.Decimal

	// DiscountApplied suppresses point-back accrual on customer purchases.
	DiscountApplied bool
	// HasReferrer bumps the point-back rate on customer purchases.
	HasReferrer bool
}

// Quote is the derived payment block for one order.
type Quote struct {
	Subtotal   int64
	Total      int64
	Commission int64
	Net        int64
	// PointBack is the value-back the buyer accrues. Zero outside
	// customer-purchase mode and whenever a discount was applied.
	PointBack int64
}

// Calculator derives order totals, commission, and point-back under the two
// named regimes. It is pure; all state comes from configuration.
type Calculator struct {
	minAmount    int64
	maxAmount    int64
	purchaseRate decimal.Decimal
	referralRate decimal.Decimal
}

// NewCalculator builds a calculator from the order bounds and point-back
// configuration.
func NewCalculator(orders config.OrdersConfig, points config.PointsConfig) (*Calculator, error) {
	if orders.MinAmount < 0 {
		return nil, fmt.Errorf("order minimum amount must not be negative")
	}
	if orders.MaxAmount <= orders.MinAmount {
		return nil, fmt.Errorf("order maximum amount must exceed the minimum")
	}
	return &Calculator{
		minAmount:    orders.MinAmount,
		maxAmount:    orders.MaxAmount,
		purchaseRate: points.PurchaseRateDecimal(),
		referralRate: points.ReferralRateDecimal(),
	}, nil
}

// Quote prices an order. Totals outside the configured bounds are rejected.
func (c *Calculator) Quote(input QuoteInput) (*Quote, error) {
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid pricing mode %q", input.Mode))
	}
	if input.UnitPrice < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.AdditionalFee < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "additional fee must not be negative")
	}

	subtotal := input.UnitPrice * int64(input.Quantity)
	total := subtotal + input.AdditionalFee

	if total < c.minAmount || total > c.maxAmount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order total %d outside allowed range [%d, %d]", total, c.minAmount, c.maxAmount))
	}

	quote := &Quote{
		Subtotal: subtotal,
		Total:    total,
		Net:      total,
	}

	switch input.Mode {
	case ModeMerchantTransfer:
		if input.CommissionRate.IsNegative() || input.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be in [0, 1)")
		}
		quote.Commission = Commission(total, input.CommissionRate)
		quote.Net = total - quote.Commission

	case ModeCustomerPurchase:
		if !input.DiscountApplied {
			rate := c.purchaseRate
			if input.HasReferrer {
				rate = c.referralRate
			}
			quote.PointBack = decimal.NewFromInt(total).Mul(rate).IntPart()
		}
	}

	return quote, nil
}

// Commission is floor(total × rate), truncated toward zero so a merchant is
// never over-charged by rounding.
func Commission(total int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(rate).IntPart()
}
