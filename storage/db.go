package storage

import (
	"context"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autosave-fi/autosave/internal/types"
)

type PoolProvider interface {
	Pool() *pgxpool.Pool
}

type Transactor interface {
	PoolProvider
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// LedgerStorage is the authoritative store behind the plan ledger. Every
// mutating ledger operation runs inside a single transaction obtained from
// the Transactor; Tx-suffixed methods participate in that transaction.
type LedgerStorage interface {
	Transactor
	PlanRepository
	TokenPolicyRepository
	FeePolicyRepository
	BalanceRepository
	AllowanceRepository
	CreditRepository
	NonceRepository
	RelayerRoleRepository
	EventRepository
	Close() error
}

type PlanRepository interface {
	GetPlan(ctx context.Context, id string) (types.Plan, error)
	GetPlanTx(ctx context.Context, dbTx pgx.Tx, id string, forUpdate bool) (types.Plan, error)
	InsertPlanTx(ctx context.Context, dbTx pgx.Tx, plan types.Plan) error
	UpdatePlanExecutionTx(ctx context.Context, dbTx pgx.Tx, id string, lastExecuted time.Time) error
	SetPlanActiveTx(ctx context.Context, dbTx pgx.Tx, id string, active bool) error
	ListPlansByOwner(ctx context.Context, owner string, take int, skip int, sort string) (types.PlanPaginatedList, error)
	ListActivePlansByOwnerTx(ctx context.Context, dbTx pgx.Tx, owner string) ([]types.Plan, error)
}

type TokenPolicyRepository interface {
	GetTokenPolicy(ctx context.Context, token string) (types.TokenPolicy, error)
	GetTokenPolicyTx(ctx context.Context, dbTx pgx.Tx, token string) (types.TokenPolicy, error)
	UpsertTokenPolicy(ctx context.Context, policy types.TokenPolicy) error
}

type FeePolicyRepository interface {
	GetFeePolicy(ctx context.Context) (types.FeePolicy, error)
	GetFeePolicyTx(ctx context.Context, dbTx pgx.Tx) (types.FeePolicy, error)
	SetFeePolicy(ctx context.Context, policy types.FeePolicy) error
}

type BalanceRepository interface {
	GetBalance(ctx context.Context, account string, token string) (*big.Int, error)
	GetBalanceTx(ctx context.Context, dbTx pgx.Tx, account string, token string, forUpdate bool) (*big.Int, error)
	SetBalanceTx(ctx context.Context, dbTx pgx.Tx, account string, token string, balance *big.Int) error
}

type AllowanceRepository interface {
	GetAllowanceTx(ctx context.Context, dbTx pgx.Tx, owner string, token string, forUpdate bool) (types.Allowance, error)
	UpsertAllowanceTx(ctx context.Context, dbTx pgx.Tx, allowance types.Allowance) error
}

type CreditRepository interface {
	GetRelayerCredit(ctx context.Context, relayer string) (types.RelayerCredit, error)
	GetRelayerCreditTx(ctx context.Context, dbTx pgx.Tx, relayer string, forUpdate bool) (types.RelayerCredit, error)
	SetRelayerCreditTx(ctx context.Context, dbTx pgx.Tx, relayer string, balance *big.Int) error
}

type NonceRepository interface {
	GetNonce(ctx context.Context, owner string) (uint64, error)
	// AdvanceNonceTx bumps the owner's nonce only if it currently equals
	// expected, returning ErrAuthorizationRejected otherwise. Check and
	// advance are one statement so the same artifact can never be
	// accepted twice.
	AdvanceNonceTx(ctx context.Context, dbTx pgx.Tx, owner string, expected uint64) error
}

type RelayerRoleRepository interface {
	HasRelayerRole(ctx context.Context, account string) (bool, error)
	HasRelayerRoleTx(ctx context.Context, dbTx pgx.Tx, account string) (bool, error)
	SetRelayerRole(ctx context.Context, account string, enabled bool) error
}

type EventRepository interface {
	NextHeightTx(ctx context.Context, dbTx pgx.Tx) (uint64, error)
	InsertEventTx(ctx context.Context, dbTx pgx.Tx, event types.Event) error
	EventsInRange(ctx context.Context, from uint64, to uint64, kind types.EventKind) ([]types.Event, error)
	CurrentHeight(ctx context.Context) (uint64, error)
}

// SchedulerStorage is the relayer's local durable state: a non-authoritative
// plan mirror, an append-only execution history and the discovery progress
// cursor. On any discrepancy the live ledger value wins.
type SchedulerStorage interface {
	UpsertPlan(ctx context.Context, plan types.Plan) error
	GetCachedPlan(ctx context.Context, id string) (types.Plan, error)
	ListCachedPlans(ctx context.Context) ([]types.Plan, error)
	AppendExecution(ctx context.Context, record types.ExecutionRecord) error
	ExecutionHistory(ctx context.Context, planID string, take int, skip int) (types.ExecutionHistoryList, error)
	Cursor(ctx context.Context) (uint64, error)
	SetCursor(ctx context.Context, height uint64) error
	Close() error
}
