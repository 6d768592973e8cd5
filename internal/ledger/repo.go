package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

// Repository manages persistence for the append-only ledger and the balance
// projection it maintains on merchant accounts. There is deliberately no
// update or delete path for entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.LedgerEntry) error
	AdjustBalance(ctx context.Context, accountID uuid.UUID, delta int64) (bool, error)
	CurrentBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	FindAccount(ctx context.Context, accountID uuid.UUID) (*models.MerchantAccount, error)
	ListByAccount(ctx context.Context, query ListQuery) ([]models.LedgerEntry, *pagination.Cursor, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

// ListQuery filters a merchant's ledger page.
type ListQuery struct {
	AccountID uuid.UUID
	EntryType *enums.LedgerEntryType
	Limit     int
	Cursor    *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// AdjustBalance applies a signed delta to an account's balance projection.
// Debits require an active account and keep the balance non-negative; credits
// land regardless of account status, since deactivation never forfeits value
// owed back to the wallet (refunds on in-flight orders must still settle).
// Returns false when no row matched; callers distinguish the failure reasons.
func (r *repository) AdjustBalance(ctx context.Context, accountID uuid.UUID, delta int64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE merchant_accounts
		SET points_balance = points_balance + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND points_balance + ? >= 0
		  AND (? > 0 OR status = ?)
	`, delta, accountID, delta, delta, enums.MerchantStatusActive)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CurrentBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&models.MerchantAccount{}).
		Where("id = ?", accountID).
		Select("points_balance").
		Scan(&balance).Error
	return balance, err
}

func (r *repository) FindAccount(ctx context.Context, accountID uuid.UUID) (*models.MerchantAccount, error) {
	var account models.MerchantAccount
	if err := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListByAccount(ctx context.Context, query ListQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Limit)

	q := r.db.WithContext(ctx).
		Where("account_id = ?", query.AccountID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if query.EntryType != nil {
		q = q.Where("entry_type = ?", *query.EntryType)
	}
	if query.Cursor != nil {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID,
		)
	}

	var entries []models.LedgerEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return entries, next, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
