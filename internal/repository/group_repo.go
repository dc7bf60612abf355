package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghostauditor/backend/internal/models"
)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

// GetByName returns the group row, or pgx.ErrNoRows when no such group is
// configured.
func (r *GroupRepo) GetByName(ctx context.Context, name string) (*models.ScenarioGroup, error) {
	var g models.ScenarioGroup
	err := r.pool.QueryRow(ctx, `
		SELECT group_name, cost_per_run, active FROM scenario_groups WHERE group_name = $1
	`, name).Scan(&g.Name, &g.CostPerRun, &g.Active)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetCost returns the configured cost for the group, nil when the group has
// no cost record (either no row or a NULL cost_per_run).
func (r *GroupRepo) GetCost(ctx context.Context, name string) (*int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cost_per_run FROM scenario_groups WHERE group_name = $1
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var cost *int
	if err := rows.Scan(&cost); err != nil {
		return nil, err
	}
	return cost, nil
}

// SumCosts sums every configured group cost. NULL costs do not contribute.
// includeInactive keeps inactive groups in the sum, matching the historical
// all-groups package price.
func (r *GroupRepo) SumCosts(ctx context.Context, includeInactive bool) (int, error) {
	query := `SELECT COALESCE(SUM(cost_per_run), 0) FROM scenario_groups`
	if !includeInactive {
		query += ` WHERE active`
	}
	var total int
	err := r.pool.QueryRow(ctx, query).Scan(&total)
	return total, err
}

func (r *GroupRepo) List(ctx context.Context) ([]*models.ScenarioGroup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT group_name, cost_per_run, active FROM scenario_groups ORDER BY group_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ScenarioGroup
	for rows.Next() {
		var g models.ScenarioGroup
		if err := rows.Scan(&g.Name, &g.CostPerRun, &g.Active); err != nil {
			return nil, err
		}
		list = append(list, &g)
	}
	return list, rows.Err()
}

// Upsert creates or updates a group's price and active flag.
func (r *GroupRepo) Upsert(ctx context.Context, g *models.ScenarioGroup) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scenario_groups (group_name, cost_per_run, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_name) DO UPDATE SET cost_per_run = $2, active = $3
	`, g.Name, g.CostPerRun, g.Active)
	return err
}
