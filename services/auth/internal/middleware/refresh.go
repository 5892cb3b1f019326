package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/pkg/logging"
	authmw "github.com/Skotchmaster/restaurant/pkg/middleware/auth"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
	"github.com/Skotchmaster/restaurant/services/auth/internal/repo"
)

const RefreshCookieName = "refreshToken"

type refreshLookup interface {
	FindByRefreshTokenHash(ctx context.Context, hash string) (*models.User, error)
}

// RefreshGuard admits requests carrying a refresh cookie that verifies and
// is the one currently stored for its subject.
type RefreshGuard struct {
	Tokens authmw.Verifier
	Store  refreshLookup
}

func NewRefreshGuard(v authmw.Verifier, store refreshLookup) *RefreshGuard {
	return &RefreshGuard{Tokens: v, Store: store}
}

func (g *RefreshGuard) RequireRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx)

		cookie, err := c.Cookie(RefreshCookieName)
		if err != nil || cookie.Value == "" {
			l.Warn("refresh_denied", "status", 401, "reason", "missing refresh cookie")
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		claims, err := g.Tokens.Verify(cookie.Value, tokens.Refresh)
		if err != nil {
			l.Warn("refresh_denied", "status", 401, "reason", "invalid refresh token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		user, err := g.Store.FindByRefreshTokenHash(ctx, tokens.HashRefreshToken(cookie.Value))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				l.Warn("refresh_reuse_detected", "status", 401, "user_id", claims.Subject, "jti", claims.ID)
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			l.Error("refresh_denied", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		if user.ID != claims.Subject {
			l.Warn("refresh_denied", "status", 401, "reason", "subject mismatch", "user_id", claims.Subject)
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		authmw.SetPrincipal(c, authmw.Principal{
			ID:           user.ID,
			Email:        user.Email,
			Role:         user.Role,
			RefreshToken: cookie.Value,
		})
		c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l.With("user_id", user.ID))))
		return next(c)
	}
}
