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
	_ storage.CreditRepository      = (*PostgresBackend)(nil)
	_ storage.NonceRepository       = (*PostgresBackend)(nil)
	_ storage.RelayerRoleRepository = (*PostgresBackend)(nil)
)

func scanCredit(row pgx.Row, relayer string) (types.RelayerCredit, error) {
	var credit types.RelayerCredit
	err := row.Scan(&credit.Relayer, &credit.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.RelayerCredit{Relayer: relayer, Balance: "0"}, nil
	}
	if err != nil {
		return types.RelayerCredit{}, fmt.Errorf("failed to scan relayer credit: %w", err)
	}
	return credit, nil
}

func (p *PostgresBackend) GetRelayerCredit(ctx context.Context, relayer string) (types.RelayerCredit, error) {
	if p.pool == nil {
		return types.RelayerCredit{}, fmt.Errorf("database pool is nil")
	}

	query := `SELECT relayer, balance FROM relayer_credits WHERE relayer = $1`
	return scanCredit(p.pool.QueryRow(ctx, query, relayer), relayer)
}

func (p *PostgresBackend) GetRelayerCreditTx(ctx context.Context, dbTx pgx.Tx, relayer string, forUpdate bool) (types.RelayerCredit, error) {
	query := `SELECT relayer, balance FROM relayer_credits WHERE relayer = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanCredit(dbTx.QueryRow(ctx, query, relayer), relayer)
}

func (p *PostgresBackend) SetRelayerCreditTx(ctx context.Context, dbTx pgx.Tx, relayer string, balance *big.Int) error {
	query := `
		INSERT INTO relayer_credits (relayer, balance)
		VALUES ($1, $2)
		ON CONFLICT (relayer) DO UPDATE SET balance = EXCLUDED.balance`

	_, err := dbTx.Exec(ctx, query, relayer, balance.String())
	if err != nil {
		return fmt.Errorf("failed to set relayer credit: %w", err)
	}
	return nil
}

func (p *PostgresBackend) GetNonce(ctx context.Context, owner string) (uint64, error) {
	if p.pool == nil {
		return 0, fmt.Errorf("database pool is nil")
	}

	var nonce uint64
	err := p.pool.QueryRow(ctx, `SELECT nonce FROM auth_nonces WHERE owner = $1`, owner).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

// AdvanceNonceTx is a compare-and-swap: the guarded UPDATE only matches when
// the stored nonce equals expected, and the first-use INSERT only wins for one
// of any concurrent callers. A FOR UPDATE read would not help for first use,
// since there is no row to lock yet.
func (p *PostgresBackend) AdvanceNonceTx(ctx context.Context, dbTx pgx.Tx, owner string, expected uint64) error {
	var nonce uint64
	err := dbTx.QueryRow(ctx, `
		UPDATE auth_nonces SET nonce = nonce + 1
		WHERE owner = $1 AND nonce = $2
		RETURNING nonce`, owner, expected).Scan(&nonce)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to advance nonce: %w", err)
	}
	if expected != 0 {
		return fmt.Errorf("%w: nonce mismatch for %s, expected %d", types.ErrAuthorizationRejected, owner, expected)
	}

	err = dbTx.QueryRow(ctx, `
		INSERT INTO auth_nonces (owner, nonce)
		VALUES ($1, 1)
		ON CONFLICT (owner) DO NOTHING
		RETURNING nonce`, owner).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		// a concurrent caller created the row first, the artifact
		// carrying nonce 0 has already been consumed
		return fmt.Errorf("%w: nonce mismatch for %s, expected %d", types.ErrAuthorizationRejected, owner, expected)
	}
	if err != nil {
		return fmt.Errorf("failed to advance nonce: %w", err)
	}
	return nil
}

func (p *PostgresBackend) HasRelayerRole(ctx context.Context, account string) (bool, error) {
	if p.pool == nil {
		return false, fmt.Errorf("database pool is nil")
	}

	var enabled bool
	err := p.pool.QueryRow(ctx, `SELECT enabled FROM relayer_roles WHERE account = $1`, account).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get relayer role: %w", err)
	}
	return enabled, nil
}

func (p *PostgresBackend) HasRelayerRoleTx(ctx context.Context, dbTx pgx.Tx, account string) (bool, error) {
	var enabled bool
	err := dbTx.QueryRow(ctx, `SELECT enabled FROM relayer_roles WHERE account = $1`, account).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get relayer role: %w", err)
	}
	return enabled, nil
}

func (p *PostgresBackend) SetRelayerRole(ctx context.Context, account string, enabled bool) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	query := `
		INSERT INTO relayer_roles (account, enabled)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET enabled = EXCLUDED.enabled`

	_, err := p.pool.Exec(ctx, query, account, enabled)
	if err != nil {
		return fmt.Errorf("failed to set relayer role: %w", err)
	}
	return nil
}
