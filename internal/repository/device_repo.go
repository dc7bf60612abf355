package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghostauditor/backend/internal/models"
)

type DeviceRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceRepo(pool *pgxpool.Pool) *DeviceRepo {
	return &DeviceRepo{pool: pool}
}

// TouchTx refreshes last_seen for a known device. Returns false when the
// device is not registered to the account.
func (r *DeviceRepo) TouchTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, hardwareID string) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE devices SET last_seen = now() WHERE account_id = $1 AND hardware_id = $2
	`, accountID, hardwareID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *DeviceRepo) CountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE account_id = $1`, accountID).Scan(&n)
	return n, err
}

func (r *DeviceRepo) InsertTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, hardwareID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO devices (account_id, hardware_id) VALUES ($1, $2)
	`, accountID, hardwareID)
	return err
}

func (r *DeviceRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, hardware_id, last_seen, created_at
		FROM devices WHERE account_id = $1 ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.ID, &d.AccountID, &d.HardwareID, &d.LastSeen, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}

// DeleteByAccountID clears every device registration for the account. This
// is the administrative lock reset; nothing else removes devices.
func (r *DeviceRepo) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
