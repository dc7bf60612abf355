package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghostauditor/backend/internal/models"
)

type QuoteRepo struct {
	pool *pgxpool.Pool
}

func NewQuoteRepo(pool *pgxpool.Pool) *QuoteRepo {
	return &QuoteRepo{pool: pool}
}

const quoteColumns = `id, account_id, target_kind, target_ref, cost, status, created_at, expires_at, confirmed_at`

func scanQuote(row pgx.Row) (*models.ChargeQuote, error) {
	var q models.ChargeQuote
	err := row.Scan(&q.ID, &q.AccountID, &q.TargetKind, &q.TargetRef, &q.Cost, &q.Status, &q.CreatedAt, &q.ExpiresAt, &q.ConfirmedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuoteRepo) Create(ctx context.Context, q *models.ChargeQuote) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO charge_quotes (id, account_id, target_kind, target_ref, cost, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, q.ID, q.AccountID, q.TargetKind, q.TargetRef, q.Cost, q.Status, q.ExpiresAt).Scan(&q.CreatedAt)
}

func (r *QuoteRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ChargeQuote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `
		SELECT `+quoteColumns+` FROM charge_quotes WHERE id = $1
	`, id))
}

// ConsumeTx flips a quote from quoted to confirmed and records the charged
// cost, all as one conditional UPDATE. pgx.ErrNoRows means the quote was
// missing, already consumed, expired, or not owned by the account; the
// caller distinguishes by re-reading. This single statement is what makes
// confirmation safe against double calls.
func (r *QuoteRepo) ConsumeTx(ctx context.Context, tx pgx.Tx, id, accountID uuid.UUID, chargedCost int) (*models.ChargeQuote, error) {
	return scanQuote(tx.QueryRow(ctx, `
		UPDATE charge_quotes
		SET status = 'confirmed', cost = $3, confirmed_at = now()
		WHERE id = $1 AND account_id = $2 AND status = 'quoted' AND expires_at > now()
		RETURNING `+quoteColumns+`
	`, id, accountID, chargedCost))
}

// ExpireStale marks quoted rows past their expiry as expired and returns
// how many were swept.
func (r *QuoteRepo) ExpireStale(ctx context.Context) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE charge_quotes SET status = 'expired'
		WHERE status = 'quoted' AND expires_at <= now()
	`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
