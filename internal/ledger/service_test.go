package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	accounts := `
CREATE TABLE IF NOT EXISTS merchant_accounts (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL,
  points_balance INTEGER NOT NULL DEFAULT 0,
  commission_rate TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	entries := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  entry_type TEXT NOT NULL,
  amount INTEGER NOT NULL,
  balance_after INTEGER NOT NULL,
  order_id TEXT,
  memo TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(accounts).Error)
	require.NoError(t, db.Exec(entries).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newLedgerService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db})
	require.NoError(t, err)
	return svc
}

func newAccount(t *testing.T, db *gorm.DB, balance int64, status enums.MerchantStatus) *models.MerchantAccount {
	t.Helper()

	account := &models.MerchantAccount{
		ID:             uuid.New(),
		Name:           "Bloom & Stem",
		Phone:          "01012341234",
		PointsBalance:  balance,
		CommissionRate: decimal.RequireFromString("0.25"),
		Status:         status,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestApplyDebitMovesBalanceAndAppendsEntry(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 100000, enums.MerchantStatusActive)

	orderID := uuid.New()
	entry, err := svc.Apply(context.Background(), Change{
		AccountID: account.ID,
		EntryType: enums.LedgerEntryTypePayment,
		Amount:    40000,
		OrderID:   &orderID,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-40000), entry.Amount)
	assert.Equal(t, int64(60000), entry.BalanceAfter)

	balance, err := svc.Balance(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), balance)
}

func TestApplyDebitInsufficientBalanceFailsClosed(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 30000, enums.MerchantStatusActive)

	_, err := svc.Apply(context.Background(), Change{
		AccountID: account.ID,
		EntryType: enums.LedgerEntryTypePayment,
		Amount:    40000,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientBalance, pkgerrors.As(err).Code())

	// nothing mutated
	balance, err := svc.Balance(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), balance)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("account_id = ?", account.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApplyDebitExactBalanceSucceeds(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 40000, enums.MerchantStatusActive)

	entry, err := svc.Apply(context.Background(), Change{
		AccountID: account.ID,
		EntryType: enums.LedgerEntryTypePayment,
		Amount:    40000,
	})
	require.NoError(t, err)
	assert.Zero(t, entry.BalanceAfter)
}

func TestApplyCreditRefund(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 45000, enums.MerchantStatusActive)

	entry, err := svc.Apply(context.Background(), Change{
		AccountID: account.ID,
		EntryType: enums.LedgerEntryTypeRefund,
		Amount:    55000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(55000), entry.Amount)
	assert.Equal(t, int64(100000), entry.BalanceAfter)
}

func TestApplyDebitInactiveAccountRejected(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 100000, enums.MerchantStatusInactive)

	_, err := svc.Apply(context.Background(), Change{
		AccountID: account.ID,
		EntryType: enums.LedgerEntryTypePayment,
		Amount:    10000,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	balance, err := svc.Balance(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)
}

func TestApplyCreditReachesInactiveAccount(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 45000, enums.MerchantStatusInactive)

	// deactivation must not strand refunds owed on in-flight orders
	entry, err := svc.Apply(context.Background(), Change{
		AccountID: account.ID,
		EntryType: enums.LedgerEntryTypeRefund,
		Amount:    55000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(55000), entry.Amount)
	assert.Equal(t, int64(100000), entry.BalanceAfter)
}

func TestApplyUnknownAccountNotFound(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)

	_, err := svc.Apply(context.Background(), Change{
		AccountID: uuid.New(),
		EntryType: enums.LedgerEntryTypeCharge,
		Amount:    10000,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestApplyValidatesInput(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 100000, enums.MerchantStatusActive)

	cases := []struct {
		name   string
		change Change
	}{
		{name: "missing account", change: Change{EntryType: enums.LedgerEntryTypeCharge, Amount: 100}},
		{name: "bad entry type", change: Change{AccountID: account.ID, EntryType: "bonus", Amount: 100}},
		{name: "zero amount", change: Change{AccountID: account.ID, EntryType: enums.LedgerEntryTypeCharge}},
		{name: "negative amount", change: Change{AccountID: account.ID, EntryType: enums.LedgerEntryTypeCharge, Amount: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Apply(context.Background(), tc.change)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestBalanceAfterChainsAcrossChanges(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 100000, enums.MerchantStatusActive)

	steps := []struct {
		entryType enums.LedgerEntryType
		amount    int64
		expected  int64
	}{
		{enums.LedgerEntryTypePayment, 40000, 60000},
		{enums.LedgerEntryTypePayment, 15000, 45000},
		{enums.LedgerEntryTypeRefund, 55000, 100000},
	}

	prev := int64(100000)
	for _, step := range steps {
		entry, err := svc.Apply(context.Background(), Change{
			AccountID: account.ID,
			EntryType: step.entryType,
			Amount:    step.amount,
		})
		require.NoError(t, err)
		assert.Equal(t, step.expected, entry.BalanceAfter)
		assert.Equal(t, prev+entry.Amount, entry.BalanceAfter)
		prev = entry.BalanceAfter
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	account := newAccount(t, db, 0, enums.MerchantStatusActive)

	for i := 0; i < 5; i++ {
		_, err := svc.Apply(context.Background(), Change{
			AccountID: account.ID,
			EntryType: enums.LedgerEntryTypeCharge,
			Amount:    1000,
		})
		require.NoError(t, err)
	}

	first, err := svc.List(context.Background(), ListInput{AccountID: account.ID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, int64(5000), first.Entries[0].BalanceAfter)

	rest, err := svc.List(context.Background(), ListInput{
		AccountID: account.ID,
		Limit:     3,
		Cursor:    first.NextCursor,
	})
	require.NoError(t, err)
	assert.Len(t, rest.Entries, 2)
	assert.Empty(t, rest.NextCursor)
}

func TestListRejectsBadCursor(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)

	_, err := svc.List(context.Background(), ListInput{AccountID: uuid.New(), Cursor: "not-a-cursor"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
