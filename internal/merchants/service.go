package merchants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
)

// Service exposes merchant account operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.MerchantAccount, error)
	Get(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error)
	Balance(ctx context.Context, id uuid.UUID) (int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.MerchantStatus) error
}

type service struct {
	repo Repository
}

// RegisterInput carries the fields required to open a merchant wallet.
type RegisterInput struct {
	Name           string
	Phone          string
	CommissionRate decimal.Decimal
}

// NewService wires a merchant service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("merchants repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.MerchantAccount, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant name required")
	}
	if input.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant phone required")
	}
	if input.CommissionRate.IsNegative() || input.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be in [0, 1)")
	}

	account := &models.MerchantAccount{
		Name:           input.Name,
		Phone:          input.Phone,
		CommissionRate: input.CommissionRate,
		Status:         enums.MerchantStatusActive,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create merchant account")
	}
	return account, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant account")
	}
	return account, nil
}

func (s *service) Balance(ctx context.Context, id uuid.UUID) (int64, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return account.PointsBalance, nil
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.MerchantStatus) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid merchant status %q", status))
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update merchant status")
	}
	return nil
}
