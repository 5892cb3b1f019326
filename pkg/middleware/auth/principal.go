package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/pkg/roles"
)

const principalKey = "principal"

// Principal is the authenticated caller of a request. RefreshToken is only
// set on routes behind the refresh guard.
type Principal struct {
	ID           string
	Email        string
	Role         roles.Role
	RefreshToken string
}

func SetPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", p.ID)
	c.Set("role", string(p.Role))
}

func PrincipalFrom(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}
