package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthService(t *testing.T) {
	auth := NewAuthService("test-secret")
	address := "0x1111111111111111111111111111111111111111"

	t.Run("round trip", func(t *testing.T) {
		token, err := auth.GenerateToken(address, RoleRelayer)
		require.NoError(t, err)

		claims, err := auth.ValidateToken(token)
		require.NoError(t, err)
		require.Equal(t, address, claims.Address)
		require.Equal(t, RoleRelayer, claims.Role)
		require.Equal(t, address, claims.Subject)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewAuthService("other-secret").GenerateToken(address, RoleAdmin)
		require.NoError(t, err)

		_, err = auth.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := auth.ValidateToken("not-a-token")
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := &AuthService{jwtSecret: "test-secret", tokenDuration: -time.Hour}
		token, err := expired.GenerateToken(address, RoleOwner)
		require.NoError(t, err)

		_, err = auth.ValidateToken(token)
		require.Error(t, err)
	})
}
