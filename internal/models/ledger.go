package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry actions.
const (
	ActionRunGroup    = "run_group"
	ActionRunScenario = "run_scenario"
	ActionRunAll      = "run_all"
	ActionAdminGrant  = "admin_grant"
)

// LedgerEntry is one immutable audit record. Entries are append-only and
// written in the same transaction as the balance mutation they describe.
type LedgerEntry struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Action    string    `json:"action"`
	// GroupName references the charged group where the action concerns one;
	// nil for account-level actions such as admin grants.
	GroupName    *string   `json:"group_name,omitempty"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
