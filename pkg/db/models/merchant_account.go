package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// MerchantAccount is a florist's platform wallet. PointsBalance is a
// materialized projection of the ledger: it is only ever written inside the
// same transaction as a ledger entry append and must equal the BalanceAfter
// of the account's most recent entry.
type MerchantAccount struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string               `gorm:"column:name;not null"`
	Phone          string               `gorm:"column:phone;not null"`
	PointsBalance  int64                `gorm:"column:points_balance;not null;default:0"`
	CommissionRate decimal.Decimal      `gorm:"column:commission_rate;type:numeric(5,4);not null"`
	Status         enums.MerchantStatus `gorm:"column:status;type:merchant_status;not null;default:'active'"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
