package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/storage"
)

// memoryStorage is an in-memory LedgerStorage with snapshot-rollback
// WithTransaction semantics, so the all-or-nothing behavior of ledger
// operations is observable in tests.
type memoryStorage struct {
	plans         map[string]types.Plan
	tokenPolicies map[string]types.TokenPolicy
	feePolicy     types.FeePolicy
	balances      map[string]string
	allowances    map[string]types.Allowance
	credits       map[string]string
	nonces        map[string]uint64
	roles         map[string]bool
	events        []types.Event
	height        uint64
}

var _ storage.LedgerStorage = (*memoryStorage)(nil)

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		plans:         map[string]types.Plan{},
		tokenPolicies: map[string]types.TokenPolicy{},
		feePolicy:     types.FeePolicy{BaseFee: "0"},
		balances:      map[string]string{},
		allowances:    map[string]types.Allowance{},
		credits:       map[string]string{},
		nonces:        map[string]uint64{},
		roles:         map[string]bool{},
	}
}

func (m *memoryStorage) snapshot() *memoryStorage {
	cp := &memoryStorage{
		plans:         map[string]types.Plan{},
		tokenPolicies: map[string]types.TokenPolicy{},
		feePolicy:     m.feePolicy,
		balances:      map[string]string{},
		allowances:    map[string]types.Allowance{},
		credits:       map[string]string{},
		nonces:        map[string]uint64{},
		roles:         map[string]bool{},
		events:        append([]types.Event(nil), m.events...),
		height:        m.height,
	}
	for k, v := range m.plans {
		cp.plans[k] = v
	}
	for k, v := range m.tokenPolicies {
		cp.tokenPolicies[k] = v
	}
	for k, v := range m.balances {
		cp.balances[k] = v
	}
	for k, v := range m.allowances {
		cp.allowances[k] = v
	}
	for k, v := range m.credits {
		cp.credits[k] = v
	}
	for k, v := range m.nonces {
		cp.nonces[k] = v
	}
	for k, v := range m.roles {
		cp.roles[k] = v
	}
	return cp
}

func (m *memoryStorage) restore(from *memoryStorage) {
	m.plans = from.plans
	m.tokenPolicies = from.tokenPolicies
	m.feePolicy = from.feePolicy
	m.balances = from.balances
	m.allowances = from.allowances
	m.credits = from.credits
	m.nonces = from.nonces
	m.roles = from.roles
	m.events = from.events
	m.height = from.height
}

func (m *memoryStorage) Pool() *pgxpool.Pool { return nil }
func (m *memoryStorage) Close() error        { return nil }

func (m *memoryStorage) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	saved := m.snapshot()
	if err := fn(ctx, nil); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func balanceKey(account, token string) string { return account + "|" + token }

func (m *memoryStorage) GetPlan(ctx context.Context, id string) (types.Plan, error) {
	plan, ok := m.plans[id]
	if !ok {
		return types.Plan{}, types.ErrPlanNotFound
	}
	return plan, nil
}

func (m *memoryStorage) GetPlanTx(ctx context.Context, dbTx pgx.Tx, id string, forUpdate bool) (types.Plan, error) {
	return m.GetPlan(ctx, id)
}

func (m *memoryStorage) InsertPlanTx(ctx context.Context, dbTx pgx.Tx, plan types.Plan) error {
	m.plans[plan.ID] = plan
	return nil
}

func (m *memoryStorage) UpdatePlanExecutionTx(ctx context.Context, dbTx pgx.Tx, id string, lastExecuted time.Time) error {
	plan, ok := m.plans[id]
	if !ok {
		return types.ErrPlanNotFound
	}
	plan.LastExecuted = lastExecuted
	m.plans[id] = plan
	return nil
}

func (m *memoryStorage) SetPlanActiveTx(ctx context.Context, dbTx pgx.Tx, id string, active bool) error {
	plan, ok := m.plans[id]
	if !ok {
		return types.ErrPlanNotFound
	}
	plan.Active = active
	m.plans[id] = plan
	return nil
}

func (m *memoryStorage) ListPlansByOwner(ctx context.Context, owner string, take int, skip int, sort string) (types.PlanPaginatedList, error) {
	var plans []types.Plan
	for _, plan := range m.plans {
		if plan.Owner == owner {
			plans = append(plans, plan)
		}
	}
	return types.PlanPaginatedList{Plans: plans, TotalCount: len(plans)}, nil
}

func (m *memoryStorage) ListActivePlansByOwnerTx(ctx context.Context, dbTx pgx.Tx, owner string) ([]types.Plan, error) {
	var plans []types.Plan
	for _, plan := range m.plans {
		if plan.Owner == owner && plan.Active {
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

func (m *memoryStorage) GetTokenPolicy(ctx context.Context, token string) (types.TokenPolicy, error) {
	policy, ok := m.tokenPolicies[token]
	if !ok {
		return types.TokenPolicy{}, types.ErrUnsupportedToken
	}
	return policy, nil
}

func (m *memoryStorage) GetTokenPolicyTx(ctx context.Context, dbTx pgx.Tx, token string) (types.TokenPolicy, error) {
	return m.GetTokenPolicy(ctx, token)
}

func (m *memoryStorage) UpsertTokenPolicy(ctx context.Context, policy types.TokenPolicy) error {
	m.tokenPolicies[policy.Token] = policy
	return nil
}

func (m *memoryStorage) GetFeePolicy(ctx context.Context) (types.FeePolicy, error) {
	return m.feePolicy, nil
}

func (m *memoryStorage) GetFeePolicyTx(ctx context.Context, dbTx pgx.Tx) (types.FeePolicy, error) {
	return m.feePolicy, nil
}

func (m *memoryStorage) SetFeePolicy(ctx context.Context, policy types.FeePolicy) error {
	m.feePolicy = policy
	return nil
}

func (m *memoryStorage) GetBalance(ctx context.Context, account string, token string) (*big.Int, error) {
	raw, ok := m.balances[balanceKey(account, token)]
	if !ok {
		return big.NewInt(0), nil
	}
	balance, _ := new(big.Int).SetString(raw, 10)
	return balance, nil
}

func (m *memoryStorage) GetBalanceTx(ctx context.Context, dbTx pgx.Tx, account string, token string, forUpdate bool) (*big.Int, error) {
	return m.GetBalance(ctx, account, token)
}

func (m *memoryStorage) SetBalanceTx(ctx context.Context, dbTx pgx.Tx, account string, token string, balance *big.Int) error {
	m.balances[balanceKey(account, token)] = balance.String()
	return nil
}

func (m *memoryStorage) GetAllowanceTx(ctx context.Context, dbTx pgx.Tx, owner string, token string, forUpdate bool) (types.Allowance, error) {
	allowance, ok := m.allowances[balanceKey(owner, token)]
	if !ok {
		return types.Allowance{Owner: owner, Token: token, Remaining: "0"}, nil
	}
	return allowance, nil
}

func (m *memoryStorage) UpsertAllowanceTx(ctx context.Context, dbTx pgx.Tx, allowance types.Allowance) error {
	m.allowances[balanceKey(allowance.Owner, allowance.Token)] = allowance
	return nil
}

func (m *memoryStorage) GetRelayerCredit(ctx context.Context, relayer string) (types.RelayerCredit, error) {
	balance, ok := m.credits[relayer]
	if !ok {
		balance = "0"
	}
	return types.RelayerCredit{Relayer: relayer, Balance: balance}, nil
}

func (m *memoryStorage) GetRelayerCreditTx(ctx context.Context, dbTx pgx.Tx, relayer string, forUpdate bool) (types.RelayerCredit, error) {
	return m.GetRelayerCredit(ctx, relayer)
}

func (m *memoryStorage) SetRelayerCreditTx(ctx context.Context, dbTx pgx.Tx, relayer string, balance *big.Int) error {
	m.credits[relayer] = balance.String()
	return nil
}

func (m *memoryStorage) GetNonce(ctx context.Context, owner string) (uint64, error) {
	return m.nonces[owner], nil
}

func (m *memoryStorage) AdvanceNonceTx(ctx context.Context, dbTx pgx.Tx, owner string, expected uint64) error {
	if m.nonces[owner] != expected {
		return fmt.Errorf("%w: nonce mismatch for %s, expected %d", types.ErrAuthorizationRejected, owner, expected)
	}
	m.nonces[owner] = expected + 1
	return nil
}

func (m *memoryStorage) HasRelayerRole(ctx context.Context, account string) (bool, error) {
	return m.roles[account], nil
}

func (m *memoryStorage) HasRelayerRoleTx(ctx context.Context, dbTx pgx.Tx, account string) (bool, error) {
	return m.roles[account], nil
}

func (m *memoryStorage) SetRelayerRole(ctx context.Context, account string, enabled bool) error {
	m.roles[account] = enabled
	return nil
}

func (m *memoryStorage) NextHeightTx(ctx context.Context, dbTx pgx.Tx) (uint64, error) {
	m.height++
	return m.height, nil
}

func (m *memoryStorage) InsertEventTx(ctx context.Context, dbTx pgx.Tx, event types.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memoryStorage) EventsInRange(ctx context.Context, from uint64, to uint64, kind types.EventKind) ([]types.Event, error) {
	var events []types.Event
	for _, event := range m.events {
		if event.Height < from || event.Height > to {
			continue
		}
		if kind != "" && event.Kind != kind {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (m *memoryStorage) CurrentHeight(ctx context.Context) (uint64, error) {
	var max uint64
	for _, event := range m.events {
		if event.Height > max {
			max = event.Height
		}
	}
	return max, nil
}
