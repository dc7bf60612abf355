package models

import (
	"time"

	"github.com/google/uuid"
)

// ScenarioGroup is a named collection of scenarios carrying the group-level
// price. CostPerRun == nil means no price is configured and the resolver's
// fallback default applies.
type ScenarioGroup struct {
	Name       string `json:"group_name"`
	CostPerRun *int   `json:"cost_per_run,omitempty"`
	Active     bool   `json:"active"`
}

// Scenario is one gated content item. Code is the payload released only
// through the billing flow; menu listings must never include it.
type Scenario struct {
	ID          uuid.UUID `json:"id"`
	GroupName   string    `json:"group_name"`
	Title       string    `json:"title"`
	Rationale   string    `json:"rationale,omitempty"`
	Remediation string    `json:"remediation,omitempty"`
	Code        string    `json:"code,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
