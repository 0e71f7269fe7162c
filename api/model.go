package api

type CreatePlanRequest struct {
	Owner             string `json:"owner" validate:"required"`
	Token             string `json:"token" validate:"required"`
	AmountPerInterval string `json:"amount_per_interval" validate:"required"`
	IntervalSeconds   uint64 `json:"interval_seconds" validate:"required,gt=0"`
	Deadline          int64  `json:"deadline" validate:"required"`
	Nonce             uint64 `json:"nonce"`
	Signature         string `json:"signature" validate:"required,hexadecimal|startswith=0x"`
}

type PermitRequest struct {
	Owner     string `json:"owner" validate:"required"`
	Token     string `json:"token" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Deadline  int64  `json:"deadline" validate:"required"`
	Signature string `json:"signature" validate:"required,hexadecimal|startswith=0x"`
}

type CancelForRequest struct {
	Owner string `json:"owner" validate:"required"`
}

type DepositRequest struct {
	Account string `json:"account" validate:"required"`
	Token   string `json:"token" validate:"required"`
	Amount  string `json:"amount" validate:"required"`
}

type TokenPolicyRequest struct {
	Token        string `json:"token" validate:"required"`
	YieldRateBps uint64 `json:"yield_rate_bps" validate:"lte=10000"`
	Allowed      bool   `json:"allowed"`
}

type FeePolicyRequest struct {
	FeeToken      string `json:"fee_token" validate:"required"`
	BaseFee       string `json:"base_fee" validate:"required"`
	PercentFeeBps uint64 `json:"percent_fee_bps" validate:"lte=10000"`
	Active        bool   `json:"active"`
}

type RelayerRoleRequest struct {
	Account string `json:"account" validate:"required"`
	Enabled bool   `json:"enabled"`
}

type HeightResponse struct {
	Height uint64 `json:"height"`
}

type NonceResponse struct {
	Owner string `json:"owner"`
	Nonce uint64 `json:"nonce"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type WithdrawResponse struct {
	Relayer string `json:"relayer"`
	Amount  string `json:"amount"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
