package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ghostauditor/backend/internal/models"
	"github.com/ghostauditor/backend/internal/pricing"
)

// ScenarioStore is the scenario repository surface catalog needs.
type ScenarioStore interface {
	Create(ctx context.Context, s *models.Scenario) error
	ListMenu(ctx context.Context) ([]*models.Scenario, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// GroupStore manages group price records.
type GroupStore interface {
	List(ctx context.Context) ([]*models.ScenarioGroup, error)
	Upsert(ctx context.Context, g *models.ScenarioGroup) error
}

// PriceInvalidator drops cached prices after an admin price change.
type PriceInvalidator interface {
	InvalidateGroup(ctx context.Context, name string)
}

type Service struct {
	scenarios ScenarioStore
	groups    GroupStore
	prices    PriceInvalidator
}

func NewService(scenarios ScenarioStore, groups GroupStore, prices PriceInvalidator) *Service {
	return &Service{scenarios: scenarios, groups: groups, prices: prices}
}

// Menu lists active scenarios without their payloads, filtered down to the
// groups the account may access.
func (s *Service) Menu(ctx context.Context, acc *models.Account) ([]*models.Scenario, error) {
	list, err := s.scenarios.ListMenu(ctx)
	if err != nil {
		return nil, err
	}
	if len(acc.AllowedGroups) == 0 {
		return list, nil
	}
	visible := make([]*models.Scenario, 0, len(list))
	for _, sc := range list {
		if acc.MayAccessGroup(sc.GroupName) {
			visible = append(visible, sc)
		}
	}
	return visible, nil
}

// Groups lists every group with its price record.
func (s *Service) Groups(ctx context.Context) ([]*models.ScenarioGroup, error) {
	return s.groups.List(ctx)
}

// CreateScenario adds a new content item.
func (s *Service) CreateScenario(ctx context.Context, sc *models.Scenario) error {
	return s.scenarios.Create(ctx, sc)
}

// SetGroupPrice upserts the group's price record and invalidates any cached
// price for it.
func (s *Service) SetGroupPrice(ctx context.Context, g *models.ScenarioGroup) error {
	if err := s.groups.Upsert(ctx, g); err != nil {
		return err
	}
	s.prices.InvalidateGroup(ctx, g.Name)
	return nil
}

// SetScenarioActive toggles a scenario's visibility.
func (s *Service) SetScenarioActive(ctx context.Context, id uuid.UUID, active bool) error {
	err := s.scenarios.SetActive(ctx, id, active)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.ErrContentNotFound
	}
	return err
}
