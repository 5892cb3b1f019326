package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/pkg/logging"
	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

// Verifier is the part of the token service the guards need.
type Verifier interface {
	Verify(token string, class tokens.Class) (*tokens.Claims, error)
}

type AccessGuard struct {
	Tokens Verifier
}

func NewAccessGuard(v Verifier) *AccessGuard {
	return &AccessGuard{Tokens: v}
}

// RequireAccess accepts an access token from the Authorization header only.
func (g *AccessGuard) RequireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return g.requireWithValidator(next, nil)
}

// RequireRole lets through callers holding one of the given roles.
func (g *AccessGuard) RequireRole(allowed ...roles.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return g.requireWithValidator(next, func(p Principal) error {
			for _, r := range allowed {
				if p.Role == r {
					return nil
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		})
	}
}

func (g *AccessGuard) requireWithValidator(next echo.HandlerFunc, validate func(Principal) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		l := logging.FromContext(req.Context())

		raw, ok := BearerToken(req.Header.Get(echo.HeaderAuthorization))
		if !ok {
			l.Warn("access_denied", "status", 401, "reason", "missing bearer token")
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		claims, err := g.Tokens.Verify(raw, tokens.Access)
		if err != nil {
			l.Warn("access_denied", "status", 401, "reason", "invalid access token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		id := claims.Identity()
		p := Principal{ID: id.ID, Email: id.Email, Role: id.Role}
		if validate != nil {
			if err := validate(p); err != nil {
				l.Warn("access_denied", "status", 403, "reason", "role", "user_id", p.ID, "role", string(p.Role))
				return err
			}
		}

		SetPrincipal(c, p)
		c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l.With("user_id", p.ID))))
		return next(c)
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
