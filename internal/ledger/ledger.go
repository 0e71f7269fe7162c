// Package ledger implements the authoritative plan ledger: plan records,
// token and fee policies, relayer roles and accrued relayer credits. Every
// mutating operation runs in a single database transaction, so an operation
// either applies all of its effects or none of them.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/autosave-fi/autosave/common"
	"github.com/autosave-fi/autosave/internal/authz"
	"github.com/autosave-fi/autosave/internal/reward"
	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/storage"
)

// CustodyAccount is the internal account holding saved funds and uncollected
// fees. It is not a valid external address, so it can never collide with a
// normalized owner account.
const CustodyAccount = "custody"

// ExecutionResult reports the effects of one successful plan execution.
type ExecutionResult struct {
	Plan        types.Plan `json:"plan"`
	AmountSaved string     `json:"amount_saved"`
	Yield       string     `json:"yield"`
	Fee         string     `json:"fee"`
	Height      uint64     `json:"height"`
}

type Ledger struct {
	db       storage.LedgerStorage
	verifier *authz.Verifier
	admin    string
	logger   *logrus.Logger
	now      func() time.Time
}

func New(db storage.LedgerStorage, verifier *authz.Verifier, admin string, logger *logrus.Logger) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger storage cannot be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}

	adminAddr, err := common.NormalizeAddress(admin)
	if err != nil {
		return nil, fmt.Errorf("invalid admin address: %w", err)
	}

	return &Ledger{
		db:       db,
		verifier: verifier,
		admin:    adminAddr,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// DerivePlanID derives a plan id from the owner, the token and the creation
// height. The height makes ids from repeated (owner, token) subscriptions
// distinct without any extra per-call entropy.
func DerivePlanID(owner string, token string, height uint64) string {
	var heightBytes [8]byte
	binary.BigEndian.PutUint64(heightBytes[:], height)

	digest := crypto.Keccak256(
		gcommon.HexToAddress(owner).Bytes(),
		gcommon.HexToAddress(token).Bytes(),
		heightBytes[:],
	)
	return "0x" + gcommon.Bytes2Hex(digest)
}

// CreatePlan validates a subscription authorization and writes a new plan.
// Nonce comparison and advancement are a single compare-and-swap inside the
// same transaction as the plan insert, so an accepted artifact can never be
// accepted twice, even by two concurrent calls.
func (l *Ledger) CreatePlan(ctx context.Context, sub *authz.SubscriptionAuthorization) (types.Plan, error) {
	now := l.now().UTC()

	ownerAddr, err := l.verifier.Verify(sub, now)
	if err != nil {
		return types.Plan{}, err
	}
	owner, err := common.NormalizeAddress(ownerAddr.Hex())
	if err != nil {
		return types.Plan{}, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	token, err := common.NormalizeAddress(sub.Token)
	if err != nil {
		return types.Plan{}, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	amount, err := common.ParsePositiveAmount(sub.AmountPerInterval)
	if err != nil {
		return types.Plan{}, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	if sub.IntervalSeconds == 0 {
		return types.Plan{}, fmt.Errorf("%w: interval must be greater than 0", types.ErrInvalidParameters)
	}

	var plan types.Plan
	err = l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := l.db.AdvanceNonceTx(ctx, tx, owner, sub.Nonce); err != nil {
			return err
		}

		policy, err := l.db.GetTokenPolicyTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if !policy.Allowed {
			return fmt.Errorf("%w: %s", types.ErrUnsupportedToken, token)
		}

		height, err := l.db.NextHeightTx(ctx, tx)
		if err != nil {
			return err
		}

		plan = types.Plan{
			ID:                DerivePlanID(owner, token, height),
			Owner:             owner,
			Token:             token,
			AmountPerInterval: amount.String(),
			IntervalSeconds:   sub.IntervalSeconds,
			LastExecuted:      now,
			Active:            true,
			CreationHeight:    height,
			CreatedAt:         now,
		}
		if err := l.db.InsertPlanTx(ctx, tx, plan); err != nil {
			return err
		}

		return l.emitEventTx(ctx, tx, height, types.EventPlanCreated, plan.ID, types.PlanCreatedPayload{
			PlanID:            plan.ID,
			Owner:             plan.Owner,
			Token:             plan.Token,
			AmountPerInterval: plan.AmountPerInterval,
			IntervalSeconds:   plan.IntervalSeconds,
		}, now)
	})
	if err != nil {
		return types.Plan{}, err
	}

	l.logger.WithFields(logrus.Fields{
		"plan_id": plan.ID,
		"owner":   plan.Owner,
		"token":   plan.Token,
	}).Info("Plan created")

	return plan, nil
}

// ApplyPermit validates a funds-movement authorization and records it as a
// standing allowance the ledger may draw down on executions.
func (l *Ledger) ApplyPermit(ctx context.Context, permit *authz.PermitAuthorization) error {
	now := l.now().UTC()

	ownerAddr, err := l.verifier.Verify(permit, now)
	if err != nil {
		return err
	}
	owner, err := common.NormalizeAddress(ownerAddr.Hex())
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	token, err := common.NormalizeAddress(permit.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	amount, err := common.ParsePositiveAmount(permit.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	return l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		allowance, err := l.db.GetAllowanceTx(ctx, tx, owner, token, true)
		if err != nil {
			return err
		}

		remaining, err := common.ParseAmount(allowance.Remaining)
		if err != nil {
			return err
		}
		if allowance.Deadline != 0 && now.Unix() > allowance.Deadline {
			// expired remainder is not carried over
			remaining = big.NewInt(0)
		}
		remaining.Add(remaining, amount)

		return l.db.UpsertAllowanceTx(ctx, tx, types.Allowance{
			Owner:     owner,
			Token:     token,
			Remaining: remaining.String(),
			Deadline:  permit.Deadline,
		})
	})
}

// Execute performs one interval's savings transfer for a plan. The caller
// must hold the relayer role. Any gate failure aborts the transaction with
// no state change.
func (l *Ledger) Execute(ctx context.Context, relayer string, planID string) (ExecutionResult, error) {
	now := l.now().UTC()

	relayerAcct, err := common.NormalizeAddress(relayer)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	var result ExecutionResult
	err = l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		hasRole, err := l.db.HasRelayerRoleTx(ctx, tx, relayerAcct)
		if err != nil {
			return err
		}
		if !hasRole {
			return fmt.Errorf("%w: %s does not hold relayer role", types.ErrUnauthorized, relayerAcct)
		}

		plan, err := l.db.GetPlanTx(ctx, tx, planID, true)
		if err != nil {
			return err
		}
		if !plan.Active {
			return fmt.Errorf("%w: %s", types.ErrPlanInactive, planID)
		}
		if now.Before(plan.DueAt()) {
			return fmt.Errorf("%w: plan %s due at %s", types.ErrTooSoon, planID, plan.DueAt().UTC())
		}

		policy, err := l.db.GetTokenPolicyTx(ctx, tx, plan.Token)
		if err != nil {
			return err
		}
		if !policy.Allowed {
			// revoked policy: outstanding plans stay unexecutable
			return fmt.Errorf("%w: %s", types.ErrTokenDisabled, plan.Token)
		}

		amount, err := common.ParsePositiveAmount(plan.AmountPerInterval)
		if err != nil {
			return err
		}

		if err := l.transferToCustodyTx(ctx, tx, plan.Owner, plan.Token, amount, now); err != nil {
			return err
		}

		feePolicy, err := l.db.GetFeePolicyTx(ctx, tx)
		if err != nil {
			return err
		}
		fee, collectible := reward.ExecutionFee(amount, feePolicy, plan.Token)
		if collectible {
			if err := l.collectFeeTx(ctx, tx, relayerAcct, fee); err != nil {
				return err
			}
		}

		yield := reward.Yield(amount, policy.YieldRateBps, plan.IntervalSeconds)
		if yield.Sign() > 0 {
			// reward units are minted, not moved from custody
			ownerBalance, err := l.db.GetBalanceTx(ctx, tx, plan.Owner, plan.Token, true)
			if err != nil {
				return err
			}
			if err := l.db.SetBalanceTx(ctx, tx, plan.Owner, plan.Token, ownerBalance.Add(ownerBalance, yield)); err != nil {
				return err
			}
		}

		if err := l.db.UpdatePlanExecutionTx(ctx, tx, plan.ID, now); err != nil {
			return err
		}
		plan.LastExecuted = now

		height, err := l.db.NextHeightTx(ctx, tx)
		if err != nil {
			return err
		}
		result = ExecutionResult{
			Plan:        plan,
			AmountSaved: amount.String(),
			Yield:       yield.String(),
			Fee:         fee.String(),
			Height:      height,
		}

		return l.emitEventTx(ctx, tx, height, types.EventPlanExecuted, plan.ID, types.PlanExecutedPayload{
			PlanID:      plan.ID,
			AmountSaved: result.AmountSaved,
			Yield:       result.Yield,
			Fee:         result.Fee,
		}, now)
	})
	if err != nil {
		return ExecutionResult{}, err
	}

	l.logger.WithFields(logrus.Fields{
		"plan_id":      result.Plan.ID,
		"relayer":      relayerAcct,
		"amount_saved": result.AmountSaved,
		"yield":        result.Yield,
		"fee":          result.Fee,
	}).Info("Plan executed")

	return result, nil
}

// transferToCustodyTx debits the owner's balance and standing allowance and
// credits the custody account. Insufficient funds or allowance reject the
// transfer, which aborts the whole execution.
func (l *Ledger) transferToCustodyTx(ctx context.Context, tx pgx.Tx, owner string, token string, amount *big.Int, now time.Time) error {
	allowance, err := l.db.GetAllowanceTx(ctx, tx, owner, token, true)
	if err != nil {
		return err
	}
	if allowance.Deadline != 0 && now.Unix() > allowance.Deadline {
		return fmt.Errorf("%w: allowance expired at %d", types.ErrTransferRejected, allowance.Deadline)
	}
	remaining, err := common.ParseAmount(allowance.Remaining)
	if err != nil {
		return err
	}
	if remaining.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance %s below amount %s", types.ErrTransferRejected, remaining, amount)
	}

	ownerBalance, err := l.db.GetBalanceTx(ctx, tx, owner, token, true)
	if err != nil {
		return err
	}
	if ownerBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s below amount %s", types.ErrTransferRejected, ownerBalance, amount)
	}

	custodyBalance, err := l.db.GetBalanceTx(ctx, tx, CustodyAccount, token, true)
	if err != nil {
		return err
	}

	if err := l.db.SetBalanceTx(ctx, tx, owner, token, ownerBalance.Sub(ownerBalance, amount)); err != nil {
		return err
	}
	if err := l.db.SetBalanceTx(ctx, tx, CustodyAccount, token, custodyBalance.Add(custodyBalance, amount)); err != nil {
		return err
	}

	allowance.Remaining = remaining.Sub(remaining, amount).String()
	return l.db.UpsertAllowanceTx(ctx, tx, allowance)
}

// collectFeeTx earmarks a collected fee for the relayer: the fee stays in
// custody until withdrawal, the claim is recorded on the relayer's credit.
func (l *Ledger) collectFeeTx(ctx context.Context, tx pgx.Tx, relayer string, fee *big.Int) error {
	credit, err := l.db.GetRelayerCreditTx(ctx, tx, relayer, true)
	if err != nil {
		return err
	}
	balance, err := common.ParseAmount(credit.Balance)
	if err != nil {
		return err
	}
	return l.db.SetRelayerCreditTx(ctx, tx, relayer, balance.Add(balance, fee))
}

// Cancel deactivates a plan. Only the owner may cancel their own plan;
// cancellation is terminal.
func (l *Ledger) Cancel(ctx context.Context, caller string, planID string) error {
	callerAcct, err := common.NormalizeAddress(caller)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	now := l.now().UTC()
	err = l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		plan, err := l.db.GetPlanTx(ctx, tx, planID, true)
		if err != nil {
			return err
		}
		if plan.Owner != callerAcct {
			return fmt.Errorf("%w: caller %s is not plan owner", types.ErrUnauthorized, callerAcct)
		}
		return l.cancelPlanTx(ctx, tx, plan, now)
	})
	if err != nil {
		return err
	}

	l.logger.WithFields(logrus.Fields{
		"plan_id": planID,
		"caller":  callerAcct,
	}).Info("Plan cancelled")
	return nil
}

// CancelFor deactivates every active plan of an owner. Restricted to the
// administrator and relayer-role holders.
func (l *Ledger) CancelFor(ctx context.Context, caller string, owner string) error {
	callerAcct, err := common.NormalizeAddress(caller)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	ownerAcct, err := common.NormalizeAddress(owner)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	now := l.now().UTC()
	return l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if callerAcct != l.admin {
			hasRole, err := l.db.HasRelayerRoleTx(ctx, tx, callerAcct)
			if err != nil {
				return err
			}
			if !hasRole {
				return fmt.Errorf("%w: %s may not cancel for %s", types.ErrUnauthorized, callerAcct, ownerAcct)
			}
		}

		plans, err := l.db.ListActivePlansByOwnerTx(ctx, tx, ownerAcct)
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			return fmt.Errorf("%w: no active plans for %s", types.ErrNotActive, ownerAcct)
		}

		for _, plan := range plans {
			if err := l.cancelPlanTx(ctx, tx, plan, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Ledger) cancelPlanTx(ctx context.Context, tx pgx.Tx, plan types.Plan, now time.Time) error {
	if !plan.Active {
		return fmt.Errorf("%w: %s", types.ErrNotActive, plan.ID)
	}
	if err := l.db.SetPlanActiveTx(ctx, tx, plan.ID, false); err != nil {
		return err
	}

	height, err := l.db.NextHeightTx(ctx, tx)
	if err != nil {
		return err
	}
	return l.emitEventTx(ctx, tx, height, types.EventPlanCancelled, plan.ID, types.PlanCancelledPayload{
		Owner: plan.Owner,
	}, now)
}

// WithdrawRelayerCredit pays out a relayer's accrued fees. The credit is
// zeroed before the outbound transfer; both sit in one transaction, so a
// failed transfer also rolls the zeroing back.
func (l *Ledger) WithdrawRelayerCredit(ctx context.Context, relayer string) (*big.Int, error) {
	relayerAcct, err := common.NormalizeAddress(relayer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	var withdrawn *big.Int
	err = l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		credit, err := l.db.GetRelayerCreditTx(ctx, tx, relayerAcct, true)
		if err != nil {
			return err
		}
		balance, err := common.ParseAmount(credit.Balance)
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			return types.ErrNothingToWithdraw
		}

		// zero before transferring out
		if err := l.db.SetRelayerCreditTx(ctx, tx, relayerAcct, big.NewInt(0)); err != nil {
			return err
		}

		feePolicy, err := l.db.GetFeePolicyTx(ctx, tx)
		if err != nil {
			return err
		}
		feeToken, err := common.NormalizeAddress(feePolicy.FeeToken)
		if err != nil {
			return fmt.Errorf("%w: fee token unset", types.ErrTransferRejected)
		}

		custodyBalance, err := l.db.GetBalanceTx(ctx, tx, CustodyAccount, feeToken, true)
		if err != nil {
			return err
		}
		if custodyBalance.Cmp(balance) < 0 {
			return fmt.Errorf("%w: custody holds %s, credit is %s", types.ErrTransferRejected, custodyBalance, balance)
		}

		relayerBalance, err := l.db.GetBalanceTx(ctx, tx, relayerAcct, feeToken, true)
		if err != nil {
			return err
		}
		if err := l.db.SetBalanceTx(ctx, tx, CustodyAccount, feeToken, custodyBalance.Sub(custodyBalance, balance)); err != nil {
			return err
		}
		if err := l.db.SetBalanceTx(ctx, tx, relayerAcct, feeToken, relayerBalance.Add(relayerBalance, balance)); err != nil {
			return err
		}

		withdrawn = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"relayer": relayerAcct,
		"amount":  withdrawn.String(),
	}).Info("Relayer credit withdrawn")
	return withdrawn, nil
}

// Deposit credits an account's token balance, the entry point for funds
// arriving from outside the ledger. Only the administrator may call it.
func (l *Ledger) Deposit(ctx context.Context, caller string, account string, token string, amount string) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	acct, err := common.NormalizeAddress(account)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	tokenAcct, err := common.NormalizeAddress(token)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}
	value, err := common.ParsePositiveAmount(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidParameters, err)
	}

	return l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		balance, err := l.db.GetBalanceTx(ctx, tx, acct, tokenAcct, true)
		if err != nil {
			return err
		}
		return l.db.SetBalanceTx(ctx, tx, acct, tokenAcct, balance.Add(balance, value))
	})
}

func (l *Ledger) emitEventTx(ctx context.Context, tx pgx.Tx, height uint64, kind types.EventKind, planID string, payload interface{}, now time.Time) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return l.db.InsertEventTx(ctx, tx, types.Event{
		Height:    height,
		Kind:      kind,
		PlanID:    planID,
		Payload:   buf,
		CreatedAt: now,
	})
}
