package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghostauditor/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, email, password_hash, credits_balance, role, status, allowed_groups, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreditsBalance, &a.Role, &a.Status, &a.AllowedGroups, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, credits_balance, role, status, allowed_groups)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, a.Email, a.PasswordHash, a.CreditsBalance, a.Role, a.Status, a.AllowedGroups).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = $1
	`, id))
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE email = $1
	`, email))
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE
	`, id))
}

func (r *AccountRepo) GetBalance(ctx context.Context, id uuid.UUID) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT credits_balance FROM accounts WHERE id = $1`, id).Scan(&balance)
	return balance, err
}

func (r *AccountRepo) GetBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `SELECT credits_balance FROM accounts WHERE id = $1`, id).Scan(&balance)
	return balance, err
}

func (r *AccountRepo) ExistsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// DeductBalance atomically deducts amount if credits_balance >= amount.
// Returns pgx.ErrNoRows when the account is missing or the balance is too
// low; the conditional UPDATE is what closes the read-then-write race.
func (r *AccountRepo) DeductBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET credits_balance = credits_balance - $1, updated_at = now()
		WHERE id = $2 AND credits_balance >= $1
		RETURNING credits_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddBalance adds amount to the account and returns the new balance.
func (r *AccountRepo) AddBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET credits_balance = credits_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING credits_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}
