package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/autosave-fi/autosave/service"
)

const claimsContextKey = "auth_claims"

// authMiddleware validates the bearer token and stashes the claims on the
// request context. The address inside the claims is the acting account for
// everything downstream.
func authMiddleware(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "missing authorization header"})
			}
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid authorization header"})
			}

			claims, err := auth.ValidateToken(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid token"})
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

func requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := callerClaims(c)
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "missing token"})
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, ErrorResponse{Message: "insufficient role"})
		}
	}
}

func callerClaims(c echo.Context) *service.Claims {
	claims, _ := c.Get(claimsContextKey).(*service.Claims)
	return claims
}
