package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// Settlement aggregates one merchant's completed orders over a half-open
// period [PeriodStart, PeriodEnd). Every financial field is fixed at creation;
// only Status and ProcessedAt change afterwards.
type Settlement struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID       uuid.UUID              `gorm:"column:merchant_id;type:uuid;not null;index"`
	PeriodStart      time.Time              `gorm:"column:period_start;not null"`
	PeriodEnd        time.Time              `gorm:"column:period_end;not null"`
	TotalOrders      int                    `gorm:"column:total_orders;not null"`
	TotalAmount      int64                  `gorm:"column:total_amount;not null"`
	CommissionRate   decimal.Decimal        `gorm:"column:commission_rate;type:numeric(5,4);not null"`
	CommissionAmount int64                  `gorm:"column:commission_amount;not null"`
	NetAmount        int64                  `gorm:"column:net_amount;not null"`
	Status           enums.SettlementStatus `gorm:"column:status;type:settlement_status;not null;default:'pending'"`
	ProcessedAt      *time.Time             `gorm:"column:processed_at"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
