package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// LedgerEntry records one immutable balance-affecting event for a merchant
// account. Amount is signed (debits negative) and BalanceAfter snapshots the
// resulting balance; entries are never updated or deleted.
type LedgerEntry struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID    uuid.UUID             `gorm:"column:account_id;type:uuid;not null"`
	EntryType    enums.LedgerEntryType `gorm:"column:entry_type;type:ledger_entry_type;not null"`
	Amount       int64                 `gorm:"column:amount;not null"`
	BalanceAfter int64                 `gorm:"column:balance_after;not null"`
	OrderID      *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Memo         *string               `gorm:"column:memo"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}
