package enums

import "fmt"

// OrderType names the two pricing regimes an order can be created under.
// A merchant transfer charges the sending florist's balance at creation and
// realizes commission at settlement; a customer purchase accrues point-back
// to the buyer instead of charging commission upfront.
type OrderType string

const (
	OrderTypeMerchantTransfer OrderType = "merchant_transfer"
	OrderTypeCustomerPurchase OrderType = "customer_purchase"
)

var validOrderTypes = []OrderType{
	OrderTypeMerchantTransfer,
	OrderTypeCustomerPurchase,
}

// String implements fmt.Stringer.
func (t OrderType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known OrderType.
func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
