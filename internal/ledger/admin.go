package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/autosave-fi/autosave/common"
	"github.com/autosave-fi/autosave/internal/types"
)

// Administrative operations are single-writer and take effect immediately.
// Only the configured administrator account may call them.

func (l *Ledger) requireAdmin(caller string) error {
	callerAcct, err := common.NormalizeAddress(caller)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	if callerAcct != l.admin {
		return fmt.Errorf("%w: %s is not the administrator", types.ErrUnauthorized, callerAcct)
	}
	return nil
}

func (l *Ledger) SetTokenPolicy(ctx context.Context, caller string, policy types.TokenPolicy) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}

	token, err := common.NormalizeAddress(policy.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	policy.Token = token

	if err := l.db.UpsertTokenPolicy(ctx, policy); err != nil {
		return err
	}

	l.logger.WithFields(logrus.Fields{
		"token":          policy.Token,
		"yield_rate_bps": policy.YieldRateBps,
		"allowed":        policy.Allowed,
	}).Info("Token policy updated")
	return nil
}

func (l *Ledger) SetFeePolicy(ctx context.Context, caller string, policy types.FeePolicy) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}

	if policy.FeeToken != "" {
		feeToken, err := common.NormalizeAddress(policy.FeeToken)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
		}
		policy.FeeToken = feeToken
	}
	if policy.BaseFee == "" {
		policy.BaseFee = "0"
	}
	if _, err := common.ParseAmount(policy.BaseFee); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	if err := l.db.SetFeePolicy(ctx, policy); err != nil {
		return err
	}

	l.logger.WithFields(logrus.Fields{
		"fee_token":       policy.FeeToken,
		"base_fee":        policy.BaseFee,
		"percent_fee_bps": policy.PercentFeeBps,
		"active":          policy.Active,
	}).Info("Fee policy updated")
	return nil
}

func (l *Ledger) SetRelayerRole(ctx context.Context, caller string, account string, enabled bool) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}

	acct, err := common.NormalizeAddress(account)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	if err := l.db.SetRelayerRole(ctx, acct, enabled); err != nil {
		return err
	}

	l.logger.WithFields(logrus.Fields{
		"account": acct,
		"enabled": enabled,
	}).Info("Relayer role updated")
	return nil
}
