// Package reward holds the fee and yield arithmetic used by the ledger
// during plan execution. Everything here is a pure function of its inputs.
package reward

import (
	"math/big"

	"github.com/autosave-fi/autosave/internal/types"
)

const (
	secondsPerYear = 365 * 86400
	bpsDenominator = 10000
)

// Yield computes the reward minted to a plan owner for one execution:
//
//	floor(amount * rateBps * intervalSeconds / (secondsPerYear * 10000))
//
// Integer division floors the result; the rounding loss accumulated across
// many short intervals is an accepted approximation.
func Yield(amount *big.Int, rateBps uint64, intervalSeconds uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || rateBps == 0 || intervalSeconds == 0 {
		return big.NewInt(0)
	}

	num := new(big.Int).Mul(amount, new(big.Int).SetUint64(rateBps))
	num.Mul(num, new(big.Int).SetUint64(intervalSeconds))

	den := new(big.Int).Mul(big.NewInt(secondsPerYear), big.NewInt(bpsDenominator))
	return num.Quo(num, den)
}

// ExecutionFee computes the relayer fee for one execution. The fee is always
// computed when the policy is active, so repeated-failure logs and execution
// notifications can report it, but it is only collectible (credited to the
// relayer) when the fee token matches the plan token and the fee does not
// exceed the amount saved.
func ExecutionFee(amount *big.Int, pol types.FeePolicy, planToken string) (fee *big.Int, collectible bool) {
	fee = big.NewInt(0)
	if !pol.Active {
		return fee, false
	}

	if pol.BaseFee != "" {
		base, ok := new(big.Int).SetString(pol.BaseFee, 10)
		if ok && base.Sign() > 0 {
			fee.Add(fee, base)
		}
	}

	sameToken := pol.FeeToken == planToken
	if sameToken && pol.PercentFeeBps > 0 && amount != nil && amount.Sign() > 0 {
		pct := new(big.Int).Mul(amount, new(big.Int).SetUint64(pol.PercentFeeBps))
		fee.Add(fee, pct.Quo(pct, big.NewInt(bpsDenominator)))
	}

	collectible = sameToken && amount != nil && fee.Cmp(amount) <= 0 && fee.Sign() > 0
	return fee, collectible
}
