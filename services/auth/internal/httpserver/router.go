package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/restaurant/pkg/middleware/auth"
	"github.com/Skotchmaster/restaurant/services/auth/internal/middleware"
)

type Deps struct {
	Prefix       string
	AuthHandler  *AuthHTTP
	UsersHandler *UsersHTTP
	AccessGuard  *authmw.AccessGuard
	RefreshGuard *middleware.RefreshGuard
	// Ready reports whether dependencies such as the database are reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group(d.Prefix)

	auth := api.Group("/auth")
	auth.POST("/signup", d.AuthHandler.Signup)
	auth.POST("/login", d.AuthHandler.Login)
	auth.GET("/refresh", d.AuthHandler.Refresh, d.RefreshGuard.RequireRefresh)
	auth.GET("/logout", d.AuthHandler.Logout, d.AccessGuard.RequireAccess)

	users := api.Group("/users", d.AccessGuard.RequireAccess)
	users.POST("", d.UsersHandler.Create)
	users.GET("", d.UsersHandler.List)
	users.GET("/search", d.UsersHandler.Search)
	users.GET("/me", d.UsersHandler.GetMe)
	users.PATCH("/me", d.UsersHandler.UpdateMe)
	users.DELETE("/me", d.UsersHandler.DeleteMe)
	users.GET("/:id", d.UsersHandler.Get)
	users.PATCH("/:id", d.UsersHandler.Update)
	users.DELETE("/:id", d.UsersHandler.Delete)
}
