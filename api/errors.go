package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/autosave-fi/autosave/internal/types"
)

var errStatus = map[error]int{
	types.ErrInvalidParameters:     http.StatusBadRequest,
	types.ErrAuthorizationRejected: http.StatusUnauthorized,
	types.ErrUnauthorized:          http.StatusForbidden,
	types.ErrPlanNotFound:          http.StatusNotFound,
	types.ErrUnsupportedToken:      http.StatusNotFound,
	types.ErrPlanInactive:          http.StatusConflict,
	types.ErrNotActive:             http.StatusConflict,
	types.ErrTooSoon:               http.StatusConflict,
	types.ErrNothingToWithdraw:     http.StatusConflict,
	types.ErrTokenDisabled:         http.StatusUnprocessableEntity,
	types.ErrTransferRejected:      http.StatusUnprocessableEntity,
}

// jsonError maps a ledger error onto an HTTP status. The message field is
// the bare sentinel text so clients can dispatch on it, the original error
// lands in detail.
func jsonError(c echo.Context, err error) error {
	for sentinel, status := range errStatus {
		if errors.Is(err, sentinel) {
			return c.JSON(status, ErrorResponse{
				Message: sentinel.Error(),
				Detail:  err.Error(),
			})
		}
	}
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: "internal error",
		Detail:  err.Error(),
	})
}
