package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/pkg/logging"
	authmw "github.com/Skotchmaster/restaurant/pkg/middleware/auth"
	"github.com/Skotchmaster/restaurant/services/auth/internal/service"
	"github.com/Skotchmaster/restaurant/services/auth/internal/transport"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies CookieConfig
}

func (h *AuthHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req transport.SignupRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	s, err := h.Svc.Signup(ctx, req.Input())
	if err != nil {
		return httpError(c, err, "unauthorized")
	}

	c.SetCookie(h.Cookies.refreshCookie(s.RefreshToken, s.RefreshExpiresAt))
	return c.JSON(http.StatusCreated, transport.AuthResponse{
		Message: "User created successfully",
		Data:    &transport.AuthData{AccessToken: s.AccessToken, User: transport.NewUserView(s.User)},
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	s, err := h.Svc.Login(ctx, req.Input())
	if err != nil {
		return httpError(c, err, "invalid email or password")
	}

	c.SetCookie(h.Cookies.refreshCookie(s.RefreshToken, s.RefreshExpiresAt))
	return c.JSON(http.StatusOK, transport.AuthResponse{
		Message: "User logged in successfully",
		Data:    &transport.AuthData{AccessToken: s.AccessToken, User: transport.NewUserView(s.User)},
	})
}

// Refresh runs behind the refresh guard.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	p, ok := authmw.PrincipalFrom(c)
	if !ok || p.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	s, err := h.Svc.Refresh(c.Request().Context(), p.RefreshToken)
	if err != nil {
		c.SetCookie(h.Cookies.clearedRefreshCookie())
		return httpError(c, err, "unauthorized")
	}

	c.SetCookie(h.Cookies.refreshCookie(s.RefreshToken, s.RefreshExpiresAt))
	return c.JSON(http.StatusOK, transport.AuthResponse{
		Message: "Tokens refreshed successfully",
		Data:    &transport.AuthData{AccessToken: s.AccessToken},
	})
}

// Logout runs behind the access guard.
func (h *AuthHTTP) Logout(c echo.Context) error {
	p, _ := authmw.PrincipalFrom(c)

	if err := h.Svc.Logout(c.Request().Context(), p.ID); err != nil {
		return httpError(c, err, "unauthorized")
	}

	c.SetCookie(h.Cookies.clearedRefreshCookie())
	return c.JSON(http.StatusOK, transport.AuthResponse{Message: "User logged out successfully"})
}
