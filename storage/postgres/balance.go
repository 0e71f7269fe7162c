package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/storage"
)

var (
	_ storage.BalanceRepository   = (*PostgresBackend)(nil)
	_ storage.AllowanceRepository = (*PostgresBackend)(nil)
)

func parseStoredAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt stored amount: %q", s)
	}
	return amount, nil
}

func scanBalance(row pgx.Row) (*big.Int, error) {
	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan balance: %w", err)
	}
	return parseStoredAmount(raw)
}

func (p *PostgresBackend) GetBalance(ctx context.Context, account string, token string) (*big.Int, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	query := `SELECT balance FROM balances WHERE account = $1 AND token = $2`
	return scanBalance(p.pool.QueryRow(ctx, query, account, token))
}

func (p *PostgresBackend) GetBalanceTx(ctx context.Context, dbTx pgx.Tx, account string, token string, forUpdate bool) (*big.Int, error) {
	query := `SELECT balance FROM balances WHERE account = $1 AND token = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanBalance(dbTx.QueryRow(ctx, query, account, token))
}

func (p *PostgresBackend) SetBalanceTx(ctx context.Context, dbTx pgx.Tx, account string, token string, balance *big.Int) error {
	query := `
		INSERT INTO balances (account, token, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, token) DO UPDATE SET balance = EXCLUDED.balance`

	_, err := dbTx.Exec(ctx, query, account, token, balance.String())
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

func (p *PostgresBackend) GetAllowanceTx(ctx context.Context, dbTx pgx.Tx, owner string, token string, forUpdate bool) (types.Allowance, error) {
	query := `SELECT owner, token, remaining, deadline FROM allowances WHERE owner = $1 AND token = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var allowance types.Allowance
	err := dbTx.QueryRow(ctx, query, owner, token).Scan(
		&allowance.Owner,
		&allowance.Token,
		&allowance.Remaining,
		&allowance.Deadline,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Allowance{Owner: owner, Token: token, Remaining: "0"}, nil
	}
	if err != nil {
		return types.Allowance{}, fmt.Errorf("failed to scan allowance: %w", err)
	}
	return allowance, nil
}

func (p *PostgresBackend) UpsertAllowanceTx(ctx context.Context, dbTx pgx.Tx, allowance types.Allowance) error {
	query := `
		INSERT INTO allowances (owner, token, remaining, deadline)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, token) DO UPDATE
		SET remaining = EXCLUDED.remaining, deadline = EXCLUDED.deadline`

	_, err := dbTx.Exec(ctx, query, allowance.Owner, allowance.Token, allowance.Remaining, allowance.Deadline)
	if err != nil {
		return fmt.Errorf("failed to upsert allowance: %w", err)
	}
	return nil
}
