package merchants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// Repository manages persistence for merchant accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.MerchantAccount) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error)
	ListActive(ctx context.Context) ([]models.MerchantAccount, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.MerchantStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a merchant account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.MerchantAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error) {
	var account models.MerchantAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.MerchantAccount, error) {
	var accounts []models.MerchantAccount
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.MerchantStatusActive).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.MerchantStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.MerchantAccount{}).
		Where("id = ?", id).
		Update("status", status).Error
}
