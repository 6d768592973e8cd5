package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ConsumeInput asks for a discount amount to be covered from a customer's
// grant pool on behalf of an order.
type ConsumeInput struct {
	CustomerKey string
	Amount      int64
	OrderID     uuid.UUID
}

// ConsumeResult reports which grants covered the discount. Remainder is the
// grant spawned when the last grant was only partially needed.
type ConsumeResult struct {
	Consumed     int64
	UsedGrantIDs []uuid.UUID
	Remainder    *models.ValueGrant
}

// GrantInput issues new point-back value to a customer. The grant's order_id
// stays null until a later order consumes it.
type GrantInput struct {
	CustomerKey string
	Amount      int64
	GrantType   enums.GrantType
}

// Service resolves coupon consumption and issues point-back grants.
type Service interface {
	Consume(ctx context.Context, input ConsumeInput) (*ConsumeResult, error)
	ConsumeInTx(ctx context.Context, tx *gorm.DB, input ConsumeInput) (*ConsumeResult, error)
	Grant(ctx context.Context, input GrantInput) (*models.ValueGrant, error)
	GrantInTx(ctx context.Context, tx *gorm.DB, input GrantInput) (*models.ValueGrant, error)
	Balance(ctx context.Context, customerKey string) (int64, error)
	ListActive(ctx context.Context, customerKey string) ([]models.ValueGrant, error)
}

// ServiceParams wires the coupon service dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Validity time.Duration
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	validity time.Duration
	now      func() time.Time
}

// NewService builds a coupon service. Validity controls how long newly issued
// grants stay redeemable.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Validity <= 0 {
		return nil, fmt.Errorf("grant validity must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		validity: params.Validity,
		now:      now,
	}, nil
}

func (s *service) Consume(ctx context.Context, input ConsumeInput) (*ConsumeResult, error) {
	var result *ConsumeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var consumeErr error
		result, consumeErr = s.ConsumeInTx(ctx, tx, input)
		return consumeErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConsumeInTx spends grants soonest-expiry-first until the requested amount
// is covered. The last grant consumed splits: it is marked fully used and a
// remainder grant is issued with the same expiration and a back-reference.
// If the pool cannot cover the amount nothing is mutated.
func (s *service) ConsumeInTx(ctx context.Context, tx *gorm.DB, input ConsumeInput) (*ConsumeResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for coupon consumption")
	}
	if input.CustomerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer key required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount amount must be positive")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	now := s.now()

	grants, err := repo.ListActive(ctx, input.CustomerKey, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active grants")
	}

	var available int64
	for _, grant := range grants {
		available += grant.Amount
	}
	if available < input.Amount {
		return nil, pkgerrors.New(pkgerrors.CodeGrantExhausted, "requested discount exceeds available coupon value").
			WithDetails(map[string]any{
				"available": available,
				"requested": input.Amount,
			})
	}

	result := &ConsumeResult{}
	remaining := input.Amount

	for _, grant := range grants {
		if remaining == 0 {
			break
		}

		ok, err := repo.MarkUsed(ctx, grant.ID, input.OrderID, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark grant used")
		}
		if !ok {
			// a concurrent consumer won this grant; abort the whole attempt
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "grant concurrently consumed, retry checkout")
		}
		result.UsedGrantIDs = append(result.UsedGrantIDs, grant.ID)

		if grant.Amount <= remaining {
			remaining -= grant.Amount
			continue
		}

		parentID := grant.ID
		remainder := &models.ValueGrant{
			CustomerKey:   grant.CustomerKey,
			Amount:        grant.Amount - remaining,
			GrantType:     grant.GrantType,
			ExpiresAt:     grant.ExpiresAt,
			ParentGrantID: &parentID,
		}
		if err := repo.Create(ctx, remainder); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create remainder grant")
		}
		result.Remainder = remainder
		remaining = 0
	}

	result.Consumed = input.Amount
	return result, nil
}

func (s *service) Grant(ctx context.Context, input GrantInput) (*models.ValueGrant, error) {
	var grant *models.ValueGrant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var grantErr error
		grant, grantErr = s.GrantInTx(ctx, tx, input)
		return grantErr
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// GrantInTx issues a point-back grant inside a caller's transaction, so a
// retail order create accrues value atomically with the order itself.
func (s *service) GrantInTx(ctx context.Context, tx *gorm.DB, input GrantInput) (*models.ValueGrant, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for grant issuance")
	}
	if input.CustomerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer key required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "grant amount must be positive")
	}
	if !input.GrantType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid grant type %q", input.GrantType))
	}

	grant := &models.ValueGrant{
		CustomerKey: input.CustomerKey,
		Amount:      input.Amount,
		GrantType:   input.GrantType,
		ExpiresAt:   s.now().Add(s.validity),
	}
	if err := s.repo.WithTx(tx).Create(ctx, grant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create grant")
	}
	return grant, nil
}

func (s *service) Balance(ctx context.Context, customerKey string) (int64, error) {
	if customerKey == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer key required")
	}
	total, err := s.repo.SumActive(ctx, customerKey, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active grants")
	}
	return total, nil
}

func (s *service) ListActive(ctx context.Context, customerKey string) ([]models.ValueGrant, error) {
	if customerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer key required")
	}
	grants, err := s.repo.ListActive(ctx, customerKey, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active grants")
	}
	return grants, nil
}
