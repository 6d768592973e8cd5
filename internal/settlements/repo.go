package settlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

// Repository manages persistence for settlements and the orders they claim.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.Settlement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	List(ctx context.Context, query ListQuery) ([]models.Settlement, *pagination.Cursor, error)
	ListEligibleOrders(ctx context.Context, merchantID uuid.UUID, period Period) ([]models.Order, error)
	ClaimOrders(ctx context.Context, orderIDs []uuid.UUID, settlementID uuid.UUID) (int64, error)
	MarkProcessedCAS(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error)
	ListOrdersBySettlement(ctx context.Context, settlementID uuid.UUID) ([]models.Order, error)
}

// ListQuery filters the operator settlement listing.
type ListQuery struct {
	MerchantID  *uuid.UUID
	Status      *enums.SettlementStatus
	PeriodFrom  *time.Time
	PeriodUntil *time.Time
	Limit       int
	Cursor      *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlements repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, settlement *models.Settlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Settlement, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Limit)

	q := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if query.MerchantID != nil {
		q = q.Where("merchant_id = ?", *query.MerchantID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	if query.PeriodFrom != nil {
		q = q.Where("period_end > ?", *query.PeriodFrom)
	}
	if query.PeriodUntil != nil {
		q = q.Where("period_start < ?", *query.PeriodUntil)
	}
	if query.Cursor != nil {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID,
		)
	}

	var settlements []models.Settlement
	if err := q.Find(&settlements).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(settlements) > limit {
		settlements = settlements[:limit]
		last := settlements[len(settlements)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return settlements, next, nil
}

// ListEligibleOrders returns a merchant's completed, unclaimed orders whose
// completion fell inside the half-open period.
func (r *repository) ListEligibleOrders(ctx context.Context, merchantID uuid.UUID, period Period) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("receiver_account_id = ?", merchantID).
		Where("status = ?", enums.OrderStatusCompleted).
		Where("settlement_id IS NULL").
		Where("completed_at >= ? AND completed_at < ?", period.Start, period.End).
		Order("completed_at ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ClaimOrders stamps the settlement back-reference on the selected orders.
// The settlement_id IS NULL guard means a row claimed by a concurrent or
// prior settlement is simply not counted, which the caller must treat as an
// integrity failure.
func (r *repository) ClaimOrders(ctx context.Context, orderIDs []uuid.UUID, settlementID uuid.UUID) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Where("settlement_id IS NULL").
		Where("status = ?", enums.OrderStatusCompleted).
		Update("settlement_id", settlementID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// MarkProcessedCAS completes a pending settlement exactly once.
func (r *repository) MarkProcessedCAS(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("id = ? AND status = ?", id, enums.SettlementStatusPending).
		Updates(map[string]any{
			"status":       enums.SettlementStatusCompleted,
			"processed_at": processedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListOrdersBySettlement(ctx context.Context, settlementID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("settlement_id = ?", settlementID).
		Order("completed_at ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
