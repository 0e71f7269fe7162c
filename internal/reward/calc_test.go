package reward

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autosave-fi/autosave/internal/types"
)

func TestYield(t *testing.T) {
	testCases := []struct {
		name     string
		amount   *big.Int
		rateBps  uint64
		interval uint64
		expected int64
	}{
		{
			// 100 tokens at 3 decimals, 5%/yr, one day: floor(13.69) reward units.
			name:     "daily execution at 500 bps",
			amount:   big.NewInt(100_000),
			rateBps:  500,
			interval: 86400,
			expected: 13,
		},
		{
			name:     "zero rate yields nothing",
			amount:   big.NewInt(100_000),
			rateBps:  0,
			interval: 86400,
			expected: 0,
		},
		{
			name:     "zero amount yields nothing",
			amount:   big.NewInt(0),
			rateBps:  500,
			interval: 86400,
			expected: 0,
		},
		{
			name:     "sub-unit result floors to zero",
			amount:   big.NewInt(100),
			rateBps:  500,
			interval: 86400,
			expected: 0,
		},
		{
			name:     "full year at 500 bps is exactly 5 percent",
			amount:   big.NewInt(100_000),
			rateBps:  500,
			interval: 365 * 86400,
			expected: 5_000,
		},
		{
			name:     "nil amount yields nothing",
			amount:   nil,
			rateBps:  500,
			interval: 86400,
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Yield(tc.amount, tc.rateBps, tc.interval)
			require.Equal(t, tc.expected, got.Int64())
		})
	}
}

func TestYieldMonotonic(t *testing.T) {
	base := Yield(big.NewInt(100_000), 500, 86400)

	require.GreaterOrEqual(t, Yield(big.NewInt(200_000), 500, 86400).Int64(), base.Int64())
	require.GreaterOrEqual(t, Yield(big.NewInt(100_000), 600, 86400).Int64(), base.Int64())
	require.GreaterOrEqual(t, Yield(big.NewInt(100_000), 500, 2*86400).Int64(), base.Int64())
}

func TestExecutionFee(t *testing.T) {
	const usdc = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	const weth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

	activePolicy := func(feeToken string, base string, pctBps uint64) types.FeePolicy {
		return types.FeePolicy{
			FeeToken:      feeToken,
			BaseFee:       base,
			PercentFeeBps: pctBps,
			Active:        true,
		}
	}

	testCases := []struct {
		name            string
		amount          *big.Int
		policy          types.FeePolicy
		planToken       string
		wantFee         int64
		wantCollectible bool
	}{
		{
			name:            "inactive policy is free",
			amount:          big.NewInt(100_000),
			policy:          types.FeePolicy{FeeToken: usdc, BaseFee: "10", PercentFeeBps: 100, Active: false},
			planToken:       usdc,
			wantFee:         0,
			wantCollectible: false,
		},
		{
			name:            "base plus percent on matching token",
			amount:          big.NewInt(100_000),
			policy:          activePolicy(usdc, "10", 100),
			planToken:       usdc,
			wantFee:         1_010,
			wantCollectible: true,
		},
		{
			name:            "mismatched fee token reports base only, not collectible",
			amount:          big.NewInt(100_000),
			policy:          activePolicy(weth, "10", 100),
			planToken:       usdc,
			wantFee:         10,
			wantCollectible: false,
		},
		{
			name:            "fee above amount is reported but not collected",
			amount:          big.NewInt(5),
			policy:          activePolicy(usdc, "100", 0),
			planToken:       usdc,
			wantFee:         100,
			wantCollectible: false,
		},
		{
			name:            "fee equal to amount is collectible",
			amount:          big.NewInt(100),
			policy:          activePolicy(usdc, "100", 0),
			planToken:       usdc,
			wantFee:         100,
			wantCollectible: true,
		},
		{
			name:            "zero fee is not collectible",
			amount:          big.NewInt(100_000),
			policy:          activePolicy(usdc, "0", 0),
			planToken:       usdc,
			wantFee:         0,
			wantCollectible: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fee, collectible := ExecutionFee(tc.amount, tc.policy, tc.planToken)
			require.Equal(t, tc.wantFee, fee.Int64())
			require.Equal(t, tc.wantCollectible, collectible)
		})
	}
}
