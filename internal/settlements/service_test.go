package settlements

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/internal/merchants"
	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/logger"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS merchant_accounts (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL,
  points_balance INTEGER NOT NULL DEFAULT 0,
  commission_rate TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_type TEXT NOT NULL,
  sender_account_id TEXT,
  customer_key TEXT,
  receiver_account_id TEXT,
  status TEXT NOT NULL,
  product_type TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  subtotal_amount INTEGER NOT NULL,
  additional_fee INTEGER NOT NULL DEFAULT 0,
  fee_reason TEXT,
  commission_amount INTEGER NOT NULL DEFAULT 0,
  total_amount INTEGER NOT NULL,
  points_used INTEGER NOT NULL DEFAULT 0,
  settlement_id TEXT,
  accepted_at DATETIME,
  delivery_started_at DATETIME,
  completed_at DATETIME,
  rejected_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS settlements (
  id TEXT PRIMARY KEY,
  merchant_id TEXT NOT NULL,
  period_start DATETIME NOT NULL,
  period_end DATETIME NOT NULL,
  total_orders INTEGER NOT NULL,
  total_amount INTEGER NOT NULL,
  commission_rate TEXT NOT NULL,
  commission_amount INTEGER NOT NULL,
  net_amount INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  processed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newSettlementService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		Tx:        gormTxRunner{db: db},
		Merchants: merchants.NewRepository(db),
		Logger:    logger.New(logger.Options{Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func newMerchant(t *testing.T, db *gorm.DB, rate string) *models.MerchantAccount {
	t.Helper()

	merchant := &models.MerchantAccount{
		ID:             uuid.New(),
		Name:           "Petal & Vine",
		Phone:          "01055556666",
		PointsBalance:  0,
		CommissionRate: decimal.RequireFromString(rate),
		Status:         enums.MerchantStatusActive,
	}
	require.NoError(t, db.Create(merchant).Error)
	return merchant
}

func newCompletedOrder(t *testing.T, db *gorm.DB, receiver uuid.UUID, total int64, completedAt time.Time) *models.Order {
	t.Helper()

	sender := uuid.New()
	order := &models.Order{
		ID:                uuid.New(),
		Type:              enums.OrderTypeMerchantTransfer,
		SenderAccountID:   &sender,
		ReceiverAccountID: &receiver,
		Status:            enums.OrderStatusCompleted,
		ProductType:       "bouquet",
		ProductName:       "Seasonal Bouquet",
		UnitPrice:         total,
		Quantity:          1,
		SubtotalAmount:    total,
		TotalAmount:       total,
		CompletedAt:       &completedAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func weekOf(end time.Time) Period {
	return Period{Start: end.AddDate(0, 0, -7), End: end}
}

func TestRunForMerchantAggregatesCompletedOrders(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	merchant := newMerchant(t, db, "0.25")

	end := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	period := weekOf(end)

	// four completed orders inside the window totalling 1,000,000
	inside := []int64{400000, 300000, 200000, 100000}
	orderIDs := make([]uuid.UUID, 0, len(inside))
	for i, total := range inside {
		order := newCompletedOrder(t, db, merchant.ID, total, period.Start.Add(time.Duration(i+1)*24*time.Hour))
		orderIDs = append(orderIDs, order.ID)
	}
	// completed outside the window: must stay unclaimed
	outside := newCompletedOrder(t, db, merchant.ID, 999999, end.Add(time.Hour))

	settlement, err := svc.RunForMerchant(context.Background(), merchant.ID, period)
	require.NoError(t, err)
	require.NotNil(t, settlement)

	assert.Equal(t, 4, settlement.TotalOrders)
	assert.Equal(t, int64(1000000), settlement.TotalAmount)
	assert.Equal(t, int64(250000), settlement.CommissionAmount)
	assert.Equal(t, int64(750000), settlement.NetAmount)
	assert.Equal(t, enums.SettlementStatusPending, settlement.Status)
	assert.Nil(t, settlement.ProcessedAt)

	for _, id := range orderIDs {
		var order models.Order
		require.NoError(t, db.Where("id = ?", id).First(&order).Error)
		require.NotNil(t, order.SettlementID)
		assert.Equal(t, settlement.ID, *order.SettlementID)
	}

	var unclaimed models.Order
	require.NoError(t, db.Where("id = ?", outside.ID).First(&unclaimed).Error)
	assert.Nil(t, unclaimed.SettlementID)
}

func TestRunForMerchantEmptyPeriodCreatesNothing(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	merchant := newMerchant(t, db, "0.25")

	period := weekOf(time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC))

	settlement, err := svc.RunForMerchant(context.Background(), merchant.ID, period)
	require.NoError(t, err)
	assert.Nil(t, settlement)

	var count int64
	require.NoError(t, db.Model(&models.Settlement{}).Where("merchant_id = ?", merchant.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunForMerchantNeverSettlesAnOrderTwice(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	merchant := newMerchant(t, db, "0.25")

	end := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	period := weekOf(end)
	newCompletedOrder(t, db, merchant.ID, 500000, period.Start.Add(time.Hour))

	first, err := svc.RunForMerchant(context.Background(), merchant.ID, period)
	require.NoError(t, err)
	require.NotNil(t, first)

	// the claimed order is gone from the eligible set, so the same period
	// settles to nothing the second time around
	second, err := svc.RunForMerchant(context.Background(), merchant.ID, period)
	require.NoError(t, err)
	assert.Nil(t, second)
}

// rivalClaimRepo hands the first eligible order to a rival settlement right
// before the real claim lands, reproducing two batch runners racing over the
// same order.
type rivalClaimRepo struct {
	Repository
	db    *gorm.DB
	rival uuid.UUID
}

func (r rivalClaimRepo) WithTx(tx *gorm.DB) Repository {
	return rivalClaimRepo{Repository: r.Repository.WithTx(tx), db: tx, rival: r.rival}
}

func (r rivalClaimRepo) ClaimOrders(ctx context.Context, orderIDs []uuid.UUID, settlementID uuid.UUID) (int64, error) {
	if len(orderIDs) > 0 {
		if err := r.db.WithContext(ctx).Exec(
			`UPDATE orders SET settlement_id = ? WHERE id = ? AND settlement_id IS NULL`,
			r.rival, orderIDs[0],
		).Error; err != nil {
			return 0, err
		}
	}
	return r.Repository.ClaimOrders(ctx, orderIDs, settlementID)
}

func TestRunForMerchantHaltsOnConcurrentlyClaimedOrder(t *testing.T) {
	db := setupSettlementTestDB(t)
	merchant := newMerchant(t, db, "0.25")

	end := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	period := weekOf(end)
	first := newCompletedOrder(t, db, merchant.ID, 300000, period.Start.Add(time.Hour))
	second := newCompletedOrder(t, db, merchant.ID, 200000, period.Start.Add(2*time.Hour))

	svc, err := NewService(ServiceParams{
		Repo:      rivalClaimRepo{Repository: NewRepository(db), db: db, rival: uuid.New()},
		Tx:        gormTxRunner{db: db},
		Merchants: merchants.NewRepository(db),
		Logger:    logger.New(logger.Options{Output: io.Discard}),
	})
	require.NoError(t, err)

	settlement, err := svc.RunForMerchant(context.Background(), merchant.ID, period)
	require.Error(t, err)
	assert.Nil(t, settlement)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	// the whole merchant batch rolled back: no settlement row, nothing claimed
	var count int64
	require.NoError(t, db.Model(&models.Settlement{}).Where("merchant_id = ?", merchant.ID).Count(&count).Error)
	assert.Zero(t, count)
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		var stored models.Order
		require.NoError(t, db.Where("id = ?", id).First(&stored).Error)
		assert.Nil(t, stored.SettlementID)
	}
}

func TestRunBatchSettlesEachActiveMerchant(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	florist := newMerchant(t, db, "0.25")
	grower := newMerchant(t, db, "0.10")
	idle := newMerchant(t, db, "0.25")

	end := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	period := weekOf(end)
	newCompletedOrder(t, db, florist.ID, 200000, period.Start.Add(time.Hour))
	newCompletedOrder(t, db, grower.ID, 100000, period.Start.Add(2*time.Hour))

	result, err := svc.RunBatch(context.Background(), period)
	require.NoError(t, err)

	byMerchant := map[uuid.UUID]*models.Settlement{}
	for _, settlement := range result.Created {
		byMerchant[settlement.MerchantID] = settlement
	}
	require.Contains(t, byMerchant, florist.ID)
	require.Contains(t, byMerchant, grower.ID)
	assert.NotContains(t, byMerchant, idle.ID)

	assert.Equal(t, int64(50000), byMerchant[florist.ID].CommissionAmount)
	assert.Equal(t, int64(10000), byMerchant[grower.ID].CommissionAmount)
	assert.GreaterOrEqual(t, result.Skipped, 1)
	assert.Zero(t, result.Failed)
}

func TestProcessCompletesOnceAndIsIdempotent(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	merchant := newMerchant(t, db, "0.25")

	period := weekOf(time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC))
	newCompletedOrder(t, db, merchant.ID, 300000, period.Start.Add(time.Hour))

	created, err := svc.RunForMerchant(context.Background(), merchant.ID, period)
	require.NoError(t, err)
	require.NotNil(t, created)

	processed, err := svc.Process(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SettlementStatusCompleted, processed.Status)
	require.NotNil(t, processed.ProcessedAt)
	firstProcessedAt := *processed.ProcessedAt

	// retrying the operator command changes nothing and still succeeds
	again, err := svc.Process(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SettlementStatusCompleted, again.Status)
	require.NotNil(t, again.ProcessedAt)
	assert.WithinDuration(t, firstProcessedAt, *again.ProcessedAt, time.Second)

	// financial fields untouched by processing
	assert.Equal(t, created.TotalAmount, again.TotalAmount)
	assert.Equal(t, created.CommissionAmount, again.CommissionAmount)
	assert.Equal(t, created.NetAmount, again.NetAmount)
}

func TestProcessUnknownSettlement(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)

	_, err := svc.Process(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListFiltersByMerchantAndStatus(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	merchant := newMerchant(t, db, "0.25")
	other := newMerchant(t, db, "0.25")

	end := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	period := weekOf(end)
	newCompletedOrder(t, db, merchant.ID, 100000, period.Start.Add(time.Hour))
	newCompletedOrder(t, db, other.ID, 200000, period.Start.Add(time.Hour))

	_, err := svc.RunBatch(context.Background(), period)
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), ListInput{MerchantID: &merchant.ID, Limit: 50})
	require.NoError(t, err)
	require.Len(t, mine.Settlements, 1)
	assert.Equal(t, merchant.ID, mine.Settlements[0].MerchantID)

	require.NoError(t, db.Model(&models.Settlement{}).
		Where("merchant_id = ?", merchant.ID).
		Updates(map[string]any{"status": enums.SettlementStatusCompleted}).Error)

	pending := enums.SettlementStatusPending
	open, err := svc.List(context.Background(), ListInput{MerchantID: &merchant.ID, Status: &pending, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, open.Settlements)
}

func TestOrdersReturnsClaimedOrders(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	merchant := newMerchant(t, db, "0.25")

	period := weekOf(time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC))
	first := newCompletedOrder(t, db, merchant.ID, 100000, period.Start.Add(time.Hour))
	second := newCompletedOrder(t, db, merchant.ID, 200000, period.Start.Add(2*time.Hour))

	settlement, err := svc.RunForMerchant(context.Background(), merchant.ID, period)
	require.NoError(t, err)
	require.NotNil(t, settlement)

	orders, err := svc.Orders(context.Background(), settlement.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)
}
