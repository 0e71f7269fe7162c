package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/autosave-fi/autosave/common"
	"github.com/autosave-fi/autosave/internal/types"
)

// maxEventWindow caps one notification scan so no caller can force an
// unbounded history read.
const maxEventWindow = 1000

func (l *Ledger) GetPlan(ctx context.Context, id string) (types.Plan, error) {
	return l.db.GetPlan(ctx, id)
}

func (l *Ledger) ListPlansByOwner(ctx context.Context, owner string, take int, skip int, sort string) (types.PlanPaginatedList, error) {
	ownerAcct, err := common.NormalizeAddress(owner)
	if err != nil {
		return types.PlanPaginatedList{}, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	return l.db.ListPlansByOwner(ctx, ownerAcct, take, skip, sort)
}

// EventsInRange returns ledger notifications with heights in [from, to],
// clamped to the maximum scan window.
func (l *Ledger) EventsInRange(ctx context.Context, from uint64, to uint64, kind types.EventKind) ([]types.Event, error) {
	if to < from {
		return nil, fmt.Errorf("%w: invalid range [%d, %d]", types.ErrInvalidParameters, from, to)
	}
	if to-from >= maxEventWindow {
		to = from + maxEventWindow - 1
	}
	return l.db.EventsInRange(ctx, from, to, kind)
}

func (l *Ledger) CurrentHeight(ctx context.Context) (uint64, error) {
	return l.db.CurrentHeight(ctx)
}

func (l *Ledger) GetRelayerCredit(ctx context.Context, relayer string) (types.RelayerCredit, error) {
	relayerAcct, err := common.NormalizeAddress(relayer)
	if err != nil {
		return types.RelayerCredit{}, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	return l.db.GetRelayerCredit(ctx, relayerAcct)
}

func (l *Ledger) GetBalance(ctx context.Context, account string, token string) (*big.Int, error) {
	acct, err := common.NormalizeAddress(account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	tokenAcct, err := common.NormalizeAddress(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	return l.db.GetBalance(ctx, acct, tokenAcct)
}

func (l *Ledger) GetNonce(ctx context.Context, owner string) (uint64, error) {
	ownerAcct, err := common.NormalizeAddress(owner)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	return l.db.GetNonce(ctx, ownerAcct)
}

func (l *Ledger) GetTokenPolicy(ctx context.Context, token string) (types.TokenPolicy, error) {
	tokenAcct, err := common.NormalizeAddress(token)
	if err != nil {
		return types.TokenPolicy{}, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	return l.db.GetTokenPolicy(ctx, tokenAcct)
}

func (l *Ledger) GetFeePolicy(ctx context.Context) (types.FeePolicy, error) {
	return l.db.GetFeePolicy(ctx)
}
