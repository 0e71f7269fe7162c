package types

import "errors"

// Ledger error taxonomy. Every operation either applies completely or fails
// with one of these and leaves no state change behind.
var (
	ErrInvalidParameters     = errors.New("invalid parameters")
	ErrUnsupportedToken      = errors.New("unsupported token")
	ErrTokenDisabled         = errors.New("token disabled")
	ErrAuthorizationRejected = errors.New("authorization rejected")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrPlanInactive          = errors.New("plan inactive")
	ErrTooSoon               = errors.New("too soon")
	ErrNotActive             = errors.New("plan not active")
	ErrTransferRejected      = errors.New("transfer rejected")
	ErrNothingToWithdraw     = errors.New("nothing to withdraw")
	ErrUnauthorized          = errors.New("unauthorized")
)
