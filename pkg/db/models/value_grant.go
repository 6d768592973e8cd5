package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// ValueGrant is a discrete, expiring unit of customer discount value
// ("coupon"). A grant is consumed at most once; partial use marks the grant
// used and spawns a remainder grant carrying ParentGrantID and the original
// expiration.
type ValueGrant struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerKey   string          `gorm:"column:customer_key;not null;index"`
	Amount        int64           `gorm:"column:amount;not null"`
	GrantType     enums.GrantType `gorm:"column:grant_type;type:grant_type;not null"`
	ExpiresAt     time.Time       `gorm:"column:expires_at;not null"`
	UsedAt        *time.Time      `gorm:"column:used_at"`
	OrderID       *uuid.UUID      `gorm:"column:order_id;type:uuid"`
	ParentGrantID *uuid.UUID      `gorm:"column:parent_grant_id;type:uuid"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
