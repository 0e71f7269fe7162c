package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/autosave-fi/autosave/common"
	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/storage"
)

var _ storage.PlanRepository = (*PostgresBackend)(nil)

const planColumns = "id, owner, token, amount_per_interval, interval_seconds, last_executed, active, creation_height, created_at"

func scanPlan(row pgx.Row) (types.Plan, error) {
	var plan types.Plan
	err := row.Scan(
		&plan.ID,
		&plan.Owner,
		&plan.Token,
		&plan.AmountPerInterval,
		&plan.IntervalSeconds,
		&plan.LastExecuted,
		&plan.Active,
		&plan.CreationHeight,
		&plan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Plan{}, types.ErrPlanNotFound
	}
	if err != nil {
		return types.Plan{}, fmt.Errorf("failed to scan plan: %w", err)
	}
	return plan, nil
}

func (p *PostgresBackend) GetPlan(ctx context.Context, id string) (types.Plan, error) {
	if p.pool == nil {
		return types.Plan{}, fmt.Errorf("database pool is nil")
	}

	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	return scanPlan(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresBackend) GetPlanTx(ctx context.Context, dbTx pgx.Tx, id string, forUpdate bool) (types.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanPlan(dbTx.QueryRow(ctx, query, id))
}

func (p *PostgresBackend) InsertPlanTx(ctx context.Context, dbTx pgx.Tx, plan types.Plan) error {
	query := `
		INSERT INTO plans (id, owner, token, amount_per_interval, interval_seconds, last_executed, active, creation_height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := dbTx.Exec(ctx, query,
		plan.ID,
		plan.Owner,
		plan.Token,
		plan.AmountPerInterval,
		plan.IntervalSeconds,
		plan.LastExecuted,
		plan.Active,
		plan.CreationHeight,
		plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func (p *PostgresBackend) UpdatePlanExecutionTx(ctx context.Context, dbTx pgx.Tx, id string, lastExecuted time.Time) error {
	tag, err := dbTx.Exec(ctx, `UPDATE plans SET last_executed = $2 WHERE id = $1`, id, lastExecuted)
	if err != nil {
		return fmt.Errorf("failed to update plan execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrPlanNotFound
	}
	return nil
}

func (p *PostgresBackend) SetPlanActiveTx(ctx context.Context, dbTx pgx.Tx, id string, active bool) error {
	tag, err := dbTx.Exec(ctx, `UPDATE plans SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update plan active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrPlanNotFound
	}
	return nil
}

func (p *PostgresBackend) ListPlansByOwner(ctx context.Context, owner string, take int, skip int, sort string) (types.PlanPaginatedList, error) {
	if p.pool == nil {
		return types.PlanPaginatedList{}, fmt.Errorf("database pool is nil")
	}

	orderBy, orderDirection := common.GetSortingCondition(sort, map[string]bool{
		"created_at":      true,
		"creation_height": true,
		"last_executed":   true,
	})
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM plans
		WHERE owner = $1
		ORDER BY %s %s
		LIMIT $2 OFFSET $3`, planColumns, orderBy, orderDirection)

	rows, err := p.pool.Query(ctx, query, owner, take, skip)
	if err != nil {
		return types.PlanPaginatedList{}, err
	}
	defer rows.Close()

	var plans []types.Plan
	var totalCount int
	for rows.Next() {
		var plan types.Plan
		err := rows.Scan(
			&plan.ID,
			&plan.Owner,
			&plan.Token,
			&plan.AmountPerInterval,
			&plan.IntervalSeconds,
			&plan.LastExecuted,
			&plan.Active,
			&plan.CreationHeight,
			&plan.CreatedAt,
			&totalCount,
		)
		if err != nil {
			return types.PlanPaginatedList{}, err
		}
		plans = append(plans, plan)
	}

	return types.PlanPaginatedList{
		Plans:      plans,
		TotalCount: totalCount,
	}, nil
}

func (p *PostgresBackend) ListActivePlansByOwnerTx(ctx context.Context, dbTx pgx.Tx, owner string) ([]types.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE owner = $1 AND active ORDER BY creation_height FOR UPDATE`, planColumns)

	rows, err := dbTx.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []types.Plan
	for rows.Next() {
		var plan types.Plan
		err := rows.Scan(
			&plan.ID,
			&plan.Owner,
			&plan.Token,
			&plan.AmountPerInterval,
			&plan.IntervalSeconds,
			&plan.LastExecuted,
			&plan.Active,
			&plan.CreationHeight,
			&plan.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	return plans, nil
}
