// Package devices enforces the hardware lock: an account may log in from at
// most a configured number of registered devices, and the first successful
// login from a device claims a slot. There is no wildcard hardware id;
// recovery goes through the explicit administrative reset.
package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ghostauditor/backend/internal/models"
)

// ErrDeviceRejected is returned when the presented hardware id is not
// registered and the account's device slots are full.
var ErrDeviceRejected = errors.New("device rejected")

// DeviceStore is the minimal device repository interface.
type DeviceStore interface {
	TouchTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, hardwareID string) (bool, error)
	CountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int, error)
	InsertTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, hardwareID string) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error)
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// AccountLocker locks the account row so concurrent registrations for the
// same account serialize.
type AccountLocker interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	devices  DeviceStore
	accounts AccountLocker
	pool     TxBeginner
	maxSlots int
}

func NewService(devices DeviceStore, accounts AccountLocker, pool TxBeginner, maxSlots int) *Service {
	if maxSlots < 1 {
		maxSlots = 1
	}
	return &Service{devices: devices, accounts: accounts, pool: pool, maxSlots: maxSlots}
}

// Authorize allows the login when the hardware id is already registered
// (refreshing last_seen), registers it when a slot is free, and rejects it
// otherwise. Registration locks the account row first so two first-time
// logins cannot both claim the last slot.
func (s *Service) Authorize(ctx context.Context, accountID uuid.UUID, hardwareID string) error {
	if hardwareID == "" {
		return fmt.Errorf("%w: missing hardware id", ErrDeviceRejected)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	known, err := s.devices.TouchTx(ctx, tx, accountID, hardwareID)
	if err != nil {
		return err
	}
	if !known {
		if _, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID); err != nil {
			return err
		}
		// Re-check under the lock: a concurrent login may have registered
		// this same device between the touch and the lock.
		known, err = s.devices.TouchTx(ctx, tx, accountID, hardwareID)
		if err != nil {
			return err
		}
		if !known {
			n, err := s.devices.CountTx(ctx, tx, accountID)
			if err != nil {
				return err
			}
			if n >= s.maxSlots {
				if s.maxSlots == 1 {
					return fmt.Errorf("%w: device mismatch", ErrDeviceRejected)
				}
				return fmt.Errorf("%w: device limit reached", ErrDeviceRejected)
			}
			if err := s.devices.InsertTx(ctx, tx, accountID, hardwareID); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

// List returns the account's registered devices.
func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error) {
	return s.devices.ListByAccountID(ctx, accountID)
}

// Reset clears every device registration for the account, returning the
// lock to its unclaimed state. Administrative operation only.
func (s *Service) Reset(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.devices.DeleteByAccountID(ctx, accountID)
}
