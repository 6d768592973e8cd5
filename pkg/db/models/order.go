package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// Order is one flower delivery order. The payment block (SubtotalAmount,
// AdditionalFee, CommissionAmount, TotalAmount, PointsUsed) always satisfies
// TotalAmount == SubtotalAmount + AdditionalFee; CommissionAmount is derived
// and never edited independently. SettlementID doubles as the record of the
// settlement that claimed the order.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type              enums.OrderType   `gorm:"column:order_type;type:order_type;not null"`
	SenderAccountID   *uuid.UUID        `gorm:"column:sender_account_id;type:uuid"`
	CustomerKey       *string           `gorm:"column:customer_key"`
	ReceiverAccountID *uuid.UUID        `gorm:"column:receiver_account_id;type:uuid"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	ProductType       string            `gorm:"column:product_type;not null"`
	ProductName       string            `gorm:"column:product_name;not null"`
	UnitPrice         int64             `gorm:"column:unit_price;not null"`
	Quantity          int               `gorm:"column:quantity;not null"`
	SubtotalAmount    int64             `gorm:"column:subtotal_amount;not null"`
	AdditionalFee     int64             `gorm:"column:additional_fee;not null;default:0"`
	FeeReason         *string           `gorm:"column:fee_reason"`
	CommissionAmount  int64             `gorm:"column:commission_amount;not null;default:0"`
	TotalAmount       int64             `gorm:"column:total_amount;not null"`
	PointsUsed        int64             `gorm:"column:points_used;not null;default:0"`
	SettlementID      *uuid.UUID        `gorm:"column:settlement_id;type:uuid"`
	AcceptedAt        *time.Time        `gorm:"column:accepted_at"`
	DeliveryStartedAt *time.Time        `gorm:"column:delivery_started_at"`
	CompletedAt       *time.Time        `gorm:"column:completed_at"`
	RejectedAt        *time.Time        `gorm:"column:rejected_at"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
