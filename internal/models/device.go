package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is one hardware identifier registered to an account. The first
// successful login from a device registers it; once the account's device
// slots are full, logins from unknown hardware are rejected until an admin
// reset clears the registrations.
type Device struct {
	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	HardwareID string    `json:"hardware_id"`
	LastSeen   time.Time `json:"last_seen"`
	CreatedAt  time.Time `json:"created_at"`
}
