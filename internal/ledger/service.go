package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Change describes one balance-affecting event. Amount is a positive
// magnitude; the entry type decides the sign.
type Change struct {
	AccountID uuid.UUID
	EntryType enums.LedgerEntryType
	Amount    int64
	OrderID   *uuid.UUID
	Memo      *string
}

// ListInput carries ledger page parameters from the API layer.
type ListInput struct {
	AccountID uuid.UUID
	EntryType *enums.LedgerEntryType
	Limit     int
	Cursor    string
}

// ListResult is one page of a merchant's ledger, newest first.
type ListResult struct {
	Entries    []models.LedgerEntry
	NextCursor string
}

// Service applies balance changes and serves the merchant wallet screen.
// Every change appends exactly one immutable entry and moves the account's
// balance projection in the same transaction.
type Service interface {
	Apply(ctx context.Context, change Change) (*models.LedgerEntry, error)
	ApplyInTx(ctx context.Context, tx *gorm.DB, change Change) (*models.LedgerEntry, error)
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	EntriesForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires a ledger service with its repository and transaction runner.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Apply(ctx context.Context, change Change) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var applyErr error
		entry, applyErr = s.ApplyInTx(ctx, tx, change)
		return applyErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyInTx composes the balance move and the ledger append with a caller's
// transaction so order creation, edits, and cancellations stay atomic.
func (s *service) ApplyInTx(ctx context.Context, tx *gorm.DB, change Change) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for ledger change")
	}
	if change.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if !change.EntryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", change.EntryType))
	}
	if change.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	delta := change.Amount
	if change.EntryType.IsDebit() {
		delta = -delta
	}

	ok, err := repo.AdjustBalance(ctx, change.AccountID, delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust balance")
	}
	if !ok {
		return nil, s.classifyRejection(ctx, repo, change)
	}

	balanceAfter, err := repo.CurrentBalance(ctx, change.AccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read balance after change")
	}

	entry := &models.LedgerEntry{
		AccountID:    change.AccountID,
		EntryType:    change.EntryType,
		Amount:       delta,
		BalanceAfter: balanceAfter,
		OrderID:      change.OrderID,
		Memo:         change.Memo,
	}
	if err := repo.Append(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return entry, nil
}

// classifyRejection resolves a guarded-update miss into the right error.
// Only debits carry the active-account requirement; a credit miss means the
// account row itself is gone.
func (s *service) classifyRejection(ctx context.Context, repo Repository, change Change) error {
	account, err := repo.FindAccount(ctx, change.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "merchant account not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account for rejection")
	}
	if change.EntryType.IsDebit() {
		if account.Status != enums.MerchantStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "merchant account is not active")
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient points balance").
			WithDetails(map[string]any{
				"balance":  account.PointsBalance,
				"required": change.Amount,
			})
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "balance change rejected")
}

func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if accountID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	account, err := s.repo.FindAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "merchant account not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account.PointsBalance, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if input.EntryType != nil && !input.EntryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", *input.EntryType))
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	entries, next, err := s.repo.ListByAccount(ctx, ListQuery{
		AccountID: input.AccountID,
		EntryType: input.EntryType,
		Limit:     input.Limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	result := &ListResult{Entries: entries}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) EntriesForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	entries, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order ledger entries")
	}
	return entries, nil
}
