package enums

import "fmt"

// GrantType distinguishes how a customer value grant was earned.
type GrantType string

const (
	GrantTypePurchase GrantType = "purchase"
	GrantTypeReferral GrantType = "referral"
)

var validGrantTypes = []GrantType{
	GrantTypePurchase,
	GrantTypeReferral,
}

// IsValid reports whether the value is a known GrantType.
func (t GrantType) IsValid() bool {
	for _, candidate := range validGrantTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseGrantType converts raw input into a GrantType.
func ParseGrantType(value string) (GrantType, error) {
	for _, candidate := range validGrantTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid grant type %q", value)
}
