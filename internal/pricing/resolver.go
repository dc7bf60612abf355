// Package pricing resolves the credit cost of running a charge target.
// Resolution is a pure read over the current pricing state: a group's
// configured cost_per_run, the configurable fallback for groups without a
// cost record, or the sum over all groups for the everything package.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ghostauditor/backend/internal/models"
)

// ErrContentNotFound is returned when the target scenario or group does not
// exist or is inactive. A group that exists but has no cost record is NOT an
// error: the fallback default applies to missing prices, not missing
// content.
var ErrContentNotFound = errors.New("content not found")

// GroupPriceStore reads group price configuration.
type GroupPriceStore interface {
	GetCost(ctx context.Context, name string) (*int, error)
	SumCosts(ctx context.Context, includeInactive bool) (int, error)
}

// ScenarioLookup resolves a scenario to its parent group.
type ScenarioLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Scenario, error)
}

// CostCache is an optional read-through cache for resolved group costs.
type CostCache interface {
	GetGroupCost(ctx context.Context, name string) (cost int, hit bool, err error)
	SetGroupCost(ctx context.Context, name string, cost int) error
	InvalidateGroup(ctx context.Context, name string) error
}

type Resolver struct {
	groups    GroupPriceStore
	scenarios ScenarioLookup
	cache     CostCache // may be nil
	// fallback is charged for groups without a configured cost record.
	fallback int
	// allIncludesInactive keeps inactive groups in the everything-package sum.
	allIncludesInactive bool
}

func NewResolver(groups GroupPriceStore, scenarios ScenarioLookup, cache CostCache, fallback int, allIncludesInactive bool) *Resolver {
	return &Resolver{
		groups:              groups,
		scenarios:           scenarios,
		cache:               cache,
		fallback:            fallback,
		allIncludesInactive: allIncludesInactive,
	}
}

// Resolve returns the cost of the given charge target in credits.
func (r *Resolver) Resolve(ctx context.Context, targetKind, targetRef string) (int, error) {
	switch targetKind {
	case models.TargetGroup:
		return r.GroupCost(ctx, targetRef)
	case models.TargetScenario:
		id, err := uuid.Parse(targetRef)
		if err != nil {
			return 0, ErrContentNotFound
		}
		return r.ScenarioCost(ctx, id)
	case models.TargetAll:
		return r.AllCost(ctx)
	default:
		return 0, fmt.Errorf("unknown target kind %q", targetKind)
	}
}

// GroupCost returns the group's configured cost, or the fallback default
// when no cost record exists.
func (r *Resolver) GroupCost(ctx context.Context, groupName string) (int, error) {
	if r.cache != nil {
		if cost, hit, err := r.cache.GetGroupCost(ctx, groupName); err == nil && hit {
			return cost, nil
		}
		// Cache errors are not fatal; fall through to the store.
	}

	configured, err := r.groups.GetCost(ctx, groupName)
	if err != nil {
		return 0, err
	}
	cost := r.fallback
	if configured != nil {
		cost = *configured
	}

	if r.cache != nil {
		_ = r.cache.SetGroupCost(ctx, groupName, cost)
	}
	return cost, nil
}

// ScenarioCost resolves the scenario's parent group cost. Scenarios carry
// no item-level price.
func (r *Resolver) ScenarioCost(ctx context.Context, id uuid.UUID) (int, error) {
	sc, err := r.scenarios.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrContentNotFound
		}
		return 0, err
	}
	if !sc.Active {
		return 0, ErrContentNotFound
	}
	return r.GroupCost(ctx, sc.GroupName)
}

// AllCost returns the package price for running everything: the sum of every
// configured group cost. Groups without a cost record contribute nothing.
func (r *Resolver) AllCost(ctx context.Context) (int, error) {
	return r.groups.SumCosts(ctx, r.allIncludesInactive)
}

// InvalidateGroup drops the cached cost after an admin price change.
func (r *Resolver) InvalidateGroup(ctx context.Context, groupName string) {
	if r.cache != nil {
		_ = r.cache.InvalidateGroup(ctx, groupName)
	}
}
