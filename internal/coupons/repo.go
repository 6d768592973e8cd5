package coupons

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
)

// Repository manages persistence for customer value grants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, grant *models.ValueGrant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ValueGrant, error)
	ListActive(ctx context.Context, customerKey string, now time.Time) ([]models.ValueGrant, error)
	MarkUsed(ctx context.Context, grantID uuid.UUID, orderID uuid.UUID, usedAt time.Time) (bool, error)
	SumActive(ctx context.Context, customerKey string, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a value grant repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, grant *models.ValueGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ValueGrant, error) {
	var grant models.ValueGrant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

// ListActive returns unexpired, unconsumed grants soonest-expiry-first with a
// deterministic id tie-break, which is the consumption order.
func (r *repository) ListActive(ctx context.Context, customerKey string, now time.Time) ([]models.ValueGrant, error) {
	var grants []models.ValueGrant
	if err := r.db.WithContext(ctx).
		Where("customer_key = ? AND used_at IS NULL AND expires_at > ?", customerKey, now).
		Order("expires_at ASC, id ASC").
		Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// MarkUsed consumes a grant exactly once. The used_at IS NULL guard makes
// concurrent consumers lose with RowsAffected == 0 instead of double-spending.
func (r *repository) MarkUsed(ctx context.Context, grantID uuid.UUID, orderID uuid.UUID, usedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE value_grants
		SET used_at = ?, order_id = ?
		WHERE id = ? AND used_at IS NULL
	`, usedAt, orderID, grantID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SumActive(ctx context.Context, customerKey string, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ValueGrant{}).
		Where("customer_key = ? AND used_at IS NULL AND expires_at > ?", customerKey, now).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
