package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/storage"
)

var _ storage.EventRepository = (*PostgresBackend)(nil)

// NextHeightTx allocates the next event height inside the operation's
// transaction so a plan id can be derived from the height the creation
// notification will carry.
//
// The counter row's lock is held until the transaction commits, which
// serializes emitters: a transaction holding height N blocks the one taking
// N+1, so events commit in height order and an observed MAX(height) can have
// no uncommitted event behind it. A sequence gives no such guarantee.
func (p *PostgresBackend) NextHeightTx(ctx context.Context, dbTx pgx.Tx) (uint64, error) {
	var height uint64
	err := dbTx.QueryRow(ctx, `UPDATE ledger_height SET height = height + 1 WHERE singleton RETURNING height`).Scan(&height)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate event height: %w", err)
	}
	return height, nil
}

func (p *PostgresBackend) InsertEventTx(ctx context.Context, dbTx pgx.Tx, event types.Event) error {
	query := `
		INSERT INTO ledger_events (height, kind, plan_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := dbTx.Exec(ctx, query,
		event.Height,
		event.Kind,
		event.PlanID,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger event: %w", err)
	}
	return nil
}

func (p *PostgresBackend) EventsInRange(ctx context.Context, from uint64, to uint64, kind types.EventKind) ([]types.Event, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	query := `
		SELECT height, kind, plan_id, payload, created_at
		FROM ledger_events
		WHERE height >= $1 AND height <= $2`
	args := []interface{}{from, to}

	if kind != "" {
		query += ` AND kind = $3`
		args = append(args, kind)
	}
	query += ` ORDER BY height`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var event types.Event
		err := rows.Scan(
			&event.Height,
			&event.Kind,
			&event.PlanID,
			&event.Payload,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

func (p *PostgresBackend) CurrentHeight(ctx context.Context) (uint64, error) {
	if p.pool == nil {
		return 0, fmt.Errorf("database pool is nil")
	}

	var height uint64
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(MAX(height), 0) FROM ledger_events`).Scan(&height)
	if err != nil {
		return 0, fmt.Errorf("failed to get current height: %w", err)
	}
	return height, nil
}
