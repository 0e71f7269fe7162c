package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/storage"
)

var (
	_ storage.TokenPolicyRepository = (*PostgresBackend)(nil)
	_ storage.FeePolicyRepository   = (*PostgresBackend)(nil)
)

func scanTokenPolicy(row pgx.Row) (types.TokenPolicy, error) {
	var policy types.TokenPolicy
	err := row.Scan(&policy.Token, &policy.YieldRateBps, &policy.Allowed)
	if errors.Is(err, pgx.ErrNoRows) {
		// an unknown token behaves like a disallowed one
		return types.TokenPolicy{}, types.ErrUnsupportedToken
	}
	if err != nil {
		return types.TokenPolicy{}, fmt.Errorf("failed to scan token policy: %w", err)
	}
	return policy, nil
}

func (p *PostgresBackend) GetTokenPolicy(ctx context.Context, token string) (types.TokenPolicy, error) {
	if p.pool == nil {
		return types.TokenPolicy{}, fmt.Errorf("database pool is nil")
	}

	query := `SELECT token, yield_rate_bps, allowed FROM token_policies WHERE token = $1`
	return scanTokenPolicy(p.pool.QueryRow(ctx, query, token))
}

func (p *PostgresBackend) GetTokenPolicyTx(ctx context.Context, dbTx pgx.Tx, token string) (types.TokenPolicy, error) {
	query := `SELECT token, yield_rate_bps, allowed FROM token_policies WHERE token = $1`
	return scanTokenPolicy(dbTx.QueryRow(ctx, query, token))
}

func (p *PostgresBackend) UpsertTokenPolicy(ctx context.Context, policy types.TokenPolicy) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	query := `
		INSERT INTO token_policies (token, yield_rate_bps, allowed, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE
		SET yield_rate_bps = EXCLUDED.yield_rate_bps, allowed = EXCLUDED.allowed, updated_at = NOW()`

	_, err := p.pool.Exec(ctx, query, policy.Token, policy.YieldRateBps, policy.Allowed)
	if err != nil {
		return fmt.Errorf("failed to upsert token policy: %w", err)
	}
	return nil
}

func scanFeePolicy(row pgx.Row) (types.FeePolicy, error) {
	var policy types.FeePolicy
	err := row.Scan(&policy.FeeToken, &policy.BaseFee, &policy.PercentFeeBps, &policy.Active)
	if err != nil {
		return types.FeePolicy{}, fmt.Errorf("failed to scan fee policy: %w", err)
	}
	return policy, nil
}

func (p *PostgresBackend) GetFeePolicy(ctx context.Context) (types.FeePolicy, error) {
	if p.pool == nil {
		return types.FeePolicy{}, fmt.Errorf("database pool is nil")
	}

	query := `SELECT fee_token, base_fee, percent_fee_bps, active FROM fee_policy WHERE singleton`
	return scanFeePolicy(p.pool.QueryRow(ctx, query))
}

func (p *PostgresBackend) GetFeePolicyTx(ctx context.Context, dbTx pgx.Tx) (types.FeePolicy, error) {
	query := `SELECT fee_token, base_fee, percent_fee_bps, active FROM fee_policy WHERE singleton`
	return scanFeePolicy(dbTx.QueryRow(ctx, query))
}

func (p *PostgresBackend) SetFeePolicy(ctx context.Context, policy types.FeePolicy) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	query := `
		UPDATE fee_policy
		SET fee_token = $1, base_fee = $2, percent_fee_bps = $3, active = $4, updated_at = NOW()
		WHERE singleton`

	_, err := p.pool.Exec(ctx, query, policy.FeeToken, policy.BaseFee, policy.PercentFeeBps, policy.Active)
	if err != nil {
		return fmt.Errorf("failed to set fee policy: %w", err)
	}
	return nil
}
