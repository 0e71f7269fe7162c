package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/service"
)

func newEchoContext(t *testing.T, method string, target string, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = &customValidator{validator: validator.New()}

	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthMiddleware(t *testing.T) {
	auth := service.NewAuthService("test-secret")
	address := "0x1111111111111111111111111111111111111111"

	okHandler := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	t.Run("valid token sets claims", func(t *testing.T) {
		token, err := auth.GenerateToken(address, service.RoleRelayer)
		require.NoError(t, err)

		c, rec := newEchoContext(t, http.MethodGet, "/", map[string]string{
			echo.HeaderAuthorization: "Bearer " + token,
		})
		err = authMiddleware(auth)(func(c echo.Context) error {
			claims := callerClaims(c)
			require.NotNil(t, claims)
			require.Equal(t, address, claims.Address)
			require.Equal(t, service.RoleRelayer, claims.Role)
			return c.NoContent(http.StatusOK)
		})(c)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		c, rec := newEchoContext(t, http.MethodGet, "/", nil)
		require.NoError(t, authMiddleware(auth)(okHandler)(c))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		c, rec := newEchoContext(t, http.MethodGet, "/", map[string]string{
			echo.HeaderAuthorization: "Token abc",
		})
		require.NoError(t, authMiddleware(auth)(okHandler)(c))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := service.NewAuthService("other-secret")
		token, err := other.GenerateToken(address, service.RoleAdmin)
		require.NoError(t, err)

		c, rec := newEchoContext(t, http.MethodGet, "/", map[string]string{
			echo.HeaderAuthorization: "Bearer " + token,
		})
		require.NoError(t, authMiddleware(auth)(okHandler)(c))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	okHandler := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	t.Run("matching role passes", func(t *testing.T) {
		c, rec := newEchoContext(t, http.MethodPost, "/", nil)
		c.Set(claimsContextKey, &service.Claims{Address: "0xabc", Role: service.RoleRelayer})

		require.NoError(t, requireRole(service.RoleAdmin, service.RoleRelayer)(okHandler)(c))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong role is forbidden", func(t *testing.T) {
		c, rec := newEchoContext(t, http.MethodPost, "/", nil)
		c.Set(claimsContextKey, &service.Claims{Address: "0xabc", Role: service.RoleOwner})

		require.NoError(t, requireRole(service.RoleAdmin)(okHandler)(c))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no claims", func(t *testing.T) {
		c, rec := newEchoContext(t, http.MethodPost, "/", nil)
		require.NoError(t, requireRole(service.RoleAdmin)(okHandler)(c))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestJsonErrorMapping(t *testing.T) {
	testCases := []struct {
		err        error
		wantStatus int
	}{
		{types.ErrInvalidParameters, http.StatusBadRequest},
		{types.ErrAuthorizationRejected, http.StatusUnauthorized},
		{types.ErrUnauthorized, http.StatusForbidden},
		{types.ErrPlanNotFound, http.StatusNotFound},
		{types.ErrUnsupportedToken, http.StatusNotFound},
		{types.ErrPlanInactive, http.StatusConflict},
		{types.ErrNotActive, http.StatusConflict},
		{types.ErrTooSoon, http.StatusConflict},
		{types.ErrNothingToWithdraw, http.StatusConflict},
		{types.ErrTokenDisabled, http.StatusUnprocessableEntity},
		{types.ErrTransferRejected, http.StatusUnprocessableEntity},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			c, rec := newEchoContext(t, http.MethodGet, "/", nil)

			// wrapped errors must still map through errors.Is
			wrapped := fmt.Errorf("%w: some context", tc.err)
			require.NoError(t, jsonError(c, wrapped))
			require.Equal(t, tc.wantStatus, rec.Code)
			require.Contains(t, rec.Body.String(), tc.err.Error())
		})
	}

	t.Run("unknown error is a 500", func(t *testing.T) {
		c, rec := newEchoContext(t, http.MethodGet, "/", nil)
		require.NoError(t, jsonError(c, fmt.Errorf("boom")))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestPagination(t *testing.T) {
	testCases := []struct {
		name     string
		target   string
		wantTake int
		wantSkip int
	}{
		{"defaults", "/", 20, 0},
		{"explicit values", "/?take=50&skip=10", 50, 10},
		{"take above cap", "/?take=1000", 20, 0},
		{"negative values", "/?take=-1&skip=-5", 20, 0},
		{"garbage values", "/?take=abc&skip=xyz", 20, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newEchoContext(t, http.MethodGet, tc.target, nil)
			take, skip := pagination(c)
			require.Equal(t, tc.wantTake, take)
			require.Equal(t, tc.wantSkip, skip)
		})
	}
}
