package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghostauditor/backend/internal/models"
)

type ScenarioRepo struct {
	pool *pgxpool.Pool
}

func NewScenarioRepo(pool *pgxpool.Pool) *ScenarioRepo {
	return &ScenarioRepo{pool: pool}
}

const scenarioColumns = `id, group_name, title, rationale, remediation, code, active, created_at`

func scanScenario(row pgx.Row) (*models.Scenario, error) {
	var s models.Scenario
	err := row.Scan(&s.ID, &s.GroupName, &s.Title, &s.Rationale, &s.Remediation, &s.Code, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScenarioRepo) Create(ctx context.Context, s *models.Scenario) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO scenarios (group_name, title, rationale, remediation, code, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, s.GroupName, s.Title, s.Rationale, s.Remediation, s.Code, s.Active).Scan(&s.ID, &s.CreatedAt)
}

func (r *ScenarioRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Scenario, error) {
	return scanScenario(r.pool.QueryRow(ctx, `
		SELECT `+scenarioColumns+` FROM scenarios WHERE id = $1
	`, id))
}

// ListActiveByGroup returns the active scenarios of one group, payload included.
func (r *ScenarioRepo) ListActiveByGroup(ctx context.Context, groupName string) ([]*models.Scenario, error) {
	return r.listActive(ctx, `
		SELECT `+scenarioColumns+` FROM scenarios WHERE group_name = $1 AND active ORDER BY created_at
	`, groupName)
}

// ListActive returns every active scenario, payload included.
func (r *ScenarioRepo) ListActive(ctx context.Context) ([]*models.Scenario, error) {
	return r.listActive(ctx, `
		SELECT `+scenarioColumns+` FROM scenarios WHERE active ORDER BY group_name, created_at
	`)
}

func (r *ScenarioRepo) listActive(ctx context.Context, query string, args ...any) ([]*models.Scenario, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// ListMenu returns active scenarios without the code payload, for the menu
// listing shown before purchase.
func (r *ScenarioRepo) ListMenu(ctx context.Context) ([]*models.Scenario, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, group_name, title, rationale, remediation, active, created_at
		FROM scenarios WHERE active ORDER BY group_name, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Scenario
	for rows.Next() {
		var s models.Scenario
		if err := rows.Scan(&s.ID, &s.GroupName, &s.Title, &s.Rationale, &s.Remediation, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

func (r *ScenarioRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ct, err := r.pool.Exec(ctx, `UPDATE scenarios SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
