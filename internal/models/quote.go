package models

import (
	"time"

	"github.com/google/uuid"
)

// Charge target kinds. "all" covers every group in one package price.
const (
	TargetGroup    = "group"
	TargetScenario = "scenario"
	TargetAll      = "all"
)

// Quote statuses. A quote is consumed exactly once: quoted -> confirmed.
// The sweeper moves stale quoted rows to expired.
const (
	QuoteStatusQuoted    = "quoted"
	QuoteStatusConfirmed = "confirmed"
	QuoteStatusExpired   = "expired"
)

// ChargeQuote is the one-time transaction token minted at quote time.
// Its ID is the opaque reference the client must present to deliver and
// confirm; the stored cost is advisory only. Confirm re-resolves the price
// server-side and records the amount actually charged.
type ChargeQuote struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	TargetKind  string     `json:"target_kind"`
	TargetRef   string     `json:"target_ref,omitempty"`
	Cost        int        `json:"cost"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}
