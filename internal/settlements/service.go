package settlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/internal/pricing"
	"github.com/petalroute/petalroute-backend/pkg/db"
	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/logger"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type merchantLister interface {
	ListActive(ctx context.Context) ([]models.MerchantAccount, error)
}

// BatchResult summarizes one settlement batch run.
type BatchResult struct {
	Created []*models.Settlement
	// Skipped counts merchants with no eligible orders in the period.
	Skipped int
	// Failed counts merchants whose batch was halted by an error.
	Failed int
}

// ListInput carries the operator listing filters.
type ListInput struct {
	MerchantID  *uuid.UUID
	Status      *enums.SettlementStatus
	PeriodFrom  *time.Time
	PeriodUntil *time.Time
	Limit       int
	Cursor      string
}

// ListResult is one settlement page, newest first.
type ListResult struct {
	Settlements []models.Settlement
	NextCursor  string
}

// Service runs the weekly settlement batch and drives settlement records
// through their lifecycle.
type Service interface {
	RunBatch(ctx context.Context, period Period) (*BatchResult, error)
	RunForMerchant(ctx context.Context, merchantID uuid.UUID, period Period) (*models.Settlement, error)
	Process(ctx context.Context, settlementID uuid.UUID) (*models.Settlement, error)
	Get(ctx context.Context, settlementID uuid.UUID) (*models.Settlement, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Orders(ctx context.Context, settlementID uuid.UUID) ([]models.Order, error)
}

// ServiceParams wires the settlement service dependencies.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Merchants merchantLister
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	merchants merchantLister
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the settlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlements repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant lister required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		merchants: params.Merchants,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// RunBatch settles every active merchant for the period. A failure halts only
// that merchant's batch; the loop continues and the errors are combined.
func (s *service) RunBatch(ctx context.Context, period Period) (*BatchResult, error) {
	if err := period.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement period")
	}

	merchants, err := s.merchants.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active merchants")
	}

	batchCtx := s.logg.WithField(ctx, "period", period.String())
	result := &BatchResult{}
	var errs []error

	for _, merchant := range merchants {
		merchantCtx := s.logg.WithMerchantID(batchCtx, merchant.ID.String())

		settlement, err := s.RunForMerchant(ctx, merchant.ID, period)
		if err != nil {
			result.Failed++
			s.logg.Error(merchantCtx, "merchant settlement batch halted", err)
			errs = append(errs, fmt.Errorf("merchant %s: %w", merchant.ID, err))
			continue
		}
		if settlement == nil {
			result.Skipped++
			continue
		}
		result.Created = append(result.Created, settlement)
		s.logg.Info(s.logg.WithFields(merchantCtx, map[string]any{
			"settlement_id": settlement.ID.String(),
			"total_orders":  settlement.TotalOrders,
			"net_amount":    settlement.NetAmount,
		}), "settlement created")
	}

	return result, multierr.Combine(errs...)
}

// RunForMerchant aggregates one merchant's completed, unclaimed orders in the
// period into a pending settlement. The settlement insert and the claim on
// its orders commit together, so a crash cannot drop or double-claim an
// order. Returns nil when the period holds nothing to settle.
func (s *service) RunForMerchant(ctx context.Context, merchantID uuid.UUID, period Period) (*models.Settlement, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if err := period.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement period")
	}

	var settlement *models.Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var merchant models.MerchantAccount
		if err := tx.WithContext(ctx).Where("id = ?", merchantID).First(&merchant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
		}

		orders, err := repo.ListEligibleOrders(ctx, merchantID, period)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list eligible orders")
		}
		if len(orders) == 0 {
			return nil
		}

		var totalAmount int64
		orderIDs := make([]uuid.UUID, 0, len(orders))
		for _, order := range orders {
			totalAmount += order.TotalAmount
			orderIDs = append(orderIDs, order.ID)
		}

		commission := pricing.Commission(totalAmount, merchant.CommissionRate)
		settlement = &models.Settlement{
			MerchantID:       merchantID,
			PeriodStart:      period.Start,
			PeriodEnd:        period.End,
			TotalOrders:      len(orders),
			TotalAmount:      totalAmount,
			CommissionRate:   merchant.CommissionRate,
			CommissionAmount: commission,
			NetAmount:        totalAmount - commission,
			Status:           enums.SettlementStatusPending,
		}
		if err := repo.Create(ctx, settlement); err != nil {
			if db.IsUniqueViolation(err, "settlements_merchant_period_uniq") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "settlement already exists for this period")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settlement")
		}

		claimed, err := repo.ClaimOrders(ctx, orderIDs, settlement.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim settled orders")
		}
		if claimed != int64(len(orderIDs)) {
			// an order claimed twice is an internal-consistency alarm, never
			// silently ignored
			return pkgerrors.New(pkgerrors.CodeConflict, "order already claimed by another settlement").
				WithDetails(map[string]any{
					"expected": len(orderIDs),
					"claimed":  claimed,
				})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// Process completes a pending settlement and stamps processed_at. Processing
// an already-completed settlement is a no-op success so at-least-once
// delivery of the operator command is safe. Financial fields never change.
func (s *service) Process(ctx context.Context, settlementID uuid.UUID) (*models.Settlement, error) {
	settlement, err := s.Get(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	switch settlement.Status {
	case enums.SettlementStatusCompleted:
		return settlement, nil
	case enums.SettlementStatusPending:
		// fall through to the guarded update
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot process a settlement in status %s", settlement.Status))
	}

	processedAt := s.now().UTC()
	moved, err := s.repo.MarkProcessedCAS(ctx, settlementID, processedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark settlement processed")
	}
	if !moved {
		// lost the race; re-read and treat a completed record as success
		settlement, err = s.Get(ctx, settlementID)
		if err != nil {
			return nil, err
		}
		if settlement.Status == enums.SettlementStatusCompleted {
			return settlement, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot process a settlement in status %s", settlement.Status))
	}

	settlement.Status = enums.SettlementStatusCompleted
	settlement.ProcessedAt = &processedAt
	return settlement, nil
}

func (s *service) Get(ctx context.Context, settlementID uuid.UUID) (*models.Settlement, error) {
	if settlementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}
	settlement, err := s.repo.FindByID(ctx, settlementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
	}
	return settlement, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement status %q", *input.Status))
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	settlements, next, err := s.repo.List(ctx, ListQuery{
		MerchantID:  input.MerchantID,
		Status:      input.Status,
		PeriodFrom:  input.PeriodFrom,
		PeriodUntil: input.PeriodUntil,
		Limit:       input.Limit,
		Cursor:      cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlements")
	}

	result := &ListResult{Settlements: settlements}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Orders(ctx context.Context, settlementID uuid.UUID) ([]models.Order, error) {
	if _, err := s.Get(ctx, settlementID); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrdersBySettlement(ctx, settlementID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlement orders")
	}
	return orders, nil
}
