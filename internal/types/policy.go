package types

// TokenPolicy is the per-asset configuration. A plan may only reference a
// token whose policy is allowed, both at creation and at each execution.
type TokenPolicy struct {
	Token        string `json:"token" validate:"required"`
	YieldRateBps uint64 `json:"yield_rate_bps"`
	Allowed      bool   `json:"allowed"`
}

// FeePolicy is the global execution-fee configuration, a single
// administrator-writable record.
type FeePolicy struct {
	FeeToken      string `json:"fee_token"`
	BaseFee       string `json:"base_fee"`
	PercentFeeBps uint64 `json:"percent_fee_bps"`
	Active        bool   `json:"active"`
}

// RelayerCredit is a relayer's accrued, withdrawable fee balance in
// fee-token units.
type RelayerCredit struct {
	Relayer string `json:"relayer"`
	Balance string `json:"balance"`
}

// Allowance is the remaining standing authorization the ledger holds over an
// owner's funds for one token, recorded when a funds-movement authorization
// is accepted and drawn down on every execution.
type Allowance struct {
	Owner     string `json:"owner"`
	Token     string `json:"token"`
	Remaining string `json:"remaining"`
	Deadline  int64  `json:"deadline"`
}
