package enums

import "fmt"

// MerchantStatus reflects whether a florist account can transact.
type MerchantStatus string

const (
	MerchantStatusActive   MerchantStatus = "active"
	MerchantStatusInactive MerchantStatus = "inactive"
)

var validMerchantStatuses = []MerchantStatus{
	MerchantStatusActive,
	MerchantStatusInactive,
}

// IsValid reports whether the value is a known MerchantStatus.
func (s MerchantStatus) IsValid() bool {
	for _, candidate := range validMerchantStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMerchantStatus converts raw input into a MerchantStatus.
func ParseMerchantStatus(value string) (MerchantStatus, error) {
	for _, candidate := range validMerchantStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid merchant status %q", value)
}
