package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

// Repository manages persistence for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, currentTotal int64, stamps map[string]any) (bool, error)
	UpdateGuarded(ctx context.Context, id uuid.UUID, status enums.OrderStatus, currentTotal int64, updates map[string]any) (bool, error)
	List(ctx context.Context, query ListQuery) ([]models.Order, *pagination.Cursor, error)
}

// ListQuery filters an order page. MerchantID matches either side of the
// order; CustomerKey matches retail buyers.
type ListQuery struct {
	MerchantID  *uuid.UUID
	CustomerKey *string
	Status      *enums.OrderStatus
	Type        *enums.OrderType
	Limit       int
	Cursor      *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatusCAS moves an order between statuses only while it still shows
// the status and total the caller decided on. A concurrent transition or edit
// makes the write miss instead of acting on stale numbers; any refund the
// caller issues alongside is therefore always computed from the total this
// write saw. Stamps land in the same write as the status.
func (r *repository) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, currentTotal int64, stamps map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for col, val := range stamps {
		updates[col] = val
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND total_amount = ?", id, from, currentTotal).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateGuarded applies edit fields only while the order still shows the
// status and total the caller reconciled against.
func (r *repository) UpdateGuarded(ctx context.Context, id uuid.UUID, status enums.OrderStatus, currentTotal int64, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND total_amount = ?", id, status, currentTotal).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Limit)

	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if query.MerchantID != nil {
		q = q.Where("sender_account_id = ? OR receiver_account_id = ?", *query.MerchantID, *query.MerchantID)
	}
	if query.CustomerKey != nil {
		q = q.Where("customer_key = ?", *query.CustomerKey)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	if query.Type != nil {
		q = q.Where("order_type = ?", *query.Type)
	}
	if query.Cursor != nil {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID,
		)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return orders, next, nil
}
