// Package ledger owns account credit balances and the append-only audit
// ledger. Every balance mutation goes through here and is paired with
// exactly one ledger entry inside the caller's transaction.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ghostauditor/backend/internal/models"
)

// ErrInsufficientFunds is returned when the balance is below the requested
// deduction. The deduction leaves state untouched.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAccountNotFound is returned for operations against unknown accounts.
var ErrAccountNotFound = errors.New("account not found")

// ErrNegativeAmount is returned for negative deduction or credit amounts.
var ErrNegativeAmount = errors.New("amount must not be negative")

// AccountStore is the minimal account repository interface for the ledger.
type AccountStore interface {
	GetBalance(ctx context.Context, id uuid.UUID) (int, error)
	GetBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
	ExistsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	DeductBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// EntryStore is the minimal audit-log interface for the ledger.
type EntryStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.LedgerEntry, error)
}

type Service struct {
	accounts AccountStore
	entries  EntryStore
}

func NewService(accounts AccountStore, entries EntryStore) *Service {
	return &Service{accounts: accounts, entries: entries}
}

// Balance returns the account's current credit balance.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (int, error) {
	balance, err := s.accounts.GetBalance(ctx, accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	return balance, err
}

// Deduct charges amount against the account inside the given transaction.
// A zero amount is a no-op: no balance change, no ledger entry. Otherwise
// the balance decrement is a single conditional UPDATE (balance >= amount)
// and the audit entry is appended in the same transaction, so a deduction
// without its log entry can never be observed.
func (s *Service) Deduct(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, action string, groupName *string) (int, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}
	if amount == 0 {
		balance, err := s.accounts.GetBalanceTx(ctx, tx, accountID)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return balance, err
	}

	newBalance, err := s.accounts.DeductBalance(ctx, tx, accountID, amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.classifyDeductFailure(ctx, tx, accountID)
		}
		return 0, err
	}

	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		Action:       action,
		GroupName:    groupName,
		Amount:       amount,
		BalanceAfter: newBalance,
	}
	if err := s.entries.InsertTx(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// classifyDeductFailure tells a missing account apart from an insufficient
// balance after the conditional UPDATE matched no row.
func (s *Service) classifyDeductFailure(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) error {
	exists, err := s.accounts.ExistsTx(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return ErrInsufficientFunds
}

// Credit adds amount to the account and appends the matching audit entry in
// the same transaction. Zero amounts are a no-op like Deduct.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, action string) (int, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}
	if amount == 0 {
		balance, err := s.accounts.GetBalanceTx(ctx, tx, accountID)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return balance, err
	}

	newBalance, err := s.accounts.AddBalance(ctx, tx, accountID, amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}

	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		Action:       action,
		Amount:       amount,
		BalanceAfter: newBalance,
	}
	if err := s.entries.InsertTx(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Entries lists the account's audit log, newest first.
func (s *Service) Entries(ctx context.Context, accountID uuid.UUID) ([]*models.LedgerEntry, error) {
	return s.entries.ListByAccountID(ctx, accountID)
}
