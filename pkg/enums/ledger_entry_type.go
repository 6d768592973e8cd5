package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypeCharge  LedgerEntryType = "charge"
	LedgerEntryTypePayment LedgerEntryType = "payment"
	LedgerEntryTypeRefund  LedgerEntryType = "refund"
	LedgerEntryTypeIncome  LedgerEntryType = "income"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeCharge,
	LedgerEntryTypePayment,
	LedgerEntryTypeRefund,
	LedgerEntryTypeIncome,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsDebit reports whether entries of this type reduce the balance.
// Charge is a balance top-up; refund and income also credit the account.
func (t LedgerEntryType) IsDebit() bool {
	return t == LedgerEntryTypePayment
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
