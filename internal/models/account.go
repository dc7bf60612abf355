package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account lifecycle statuses. Disabled accounts are rejected at login
// before the credential comparison.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

type Account struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	CreditsBalance int       `json:"credits_balance"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	// AllowedGroups restricts the account to the named scenario groups.
	// Nil means unrestricted.
	AllowedGroups []string  `json:"allowed_groups,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsAdmin reports whether the account carries the admin role.
func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// MayAccessGroup reports whether the account may quote or receive content
// from the given group. Accounts without a restriction set may access
// everything.
func (a *Account) MayAccessGroup(group string) bool {
	if len(a.AllowedGroups) == 0 {
		return true
	}
	for _, g := range a.AllowedGroups {
		if g == group {
			return true
		}
	}
	return false
}
