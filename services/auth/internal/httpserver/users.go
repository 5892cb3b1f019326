package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/pkg/logging"
	authmw "github.com/Skotchmaster/restaurant/pkg/middleware/auth"
	"github.com/Skotchmaster/restaurant/pkg/util"
	"github.com/Skotchmaster/restaurant/services/auth/internal/service"
	"github.com/Skotchmaster/restaurant/services/auth/internal/transport"
)

// UsersHTTP serves /users. Every route sits behind the access guard.
type UsersHTTP struct {
	Svc *service.UsersService
}

func actor(c echo.Context) (service.Actor, error) {
	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return service.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return service.Actor{ID: p.ID, Role: p.Role}, nil
}

func respond(c echo.Context, code int, data any, msg string) error {
	return c.JSON(code, transport.Envelope{Success: true, Data: data, Message: msg})
}

func (h *UsersHTTP) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	var req transport.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		logging.FromContext(c.Request().Context()).Warn("create_user_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	u, err := h.Svc.Create(c.Request().Context(), a, req.Input())
	if err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusCreated, transport.NewUserView(u), "User created successfully")
}

func (h *UsersHTTP) List(c echo.Context) error {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	p, err := h.Svc.List(c.Request().Context(), page, size)
	if err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, transport.NewPageView(p), "Users retrieved successfully")
}

func (h *UsersHTTP) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query error")
	}
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	p, err := h.Svc.Search(c.Request().Context(), q, page, size)
	if err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, transport.NewPageView(p), "Users retrieved successfully")
}

func (h *UsersHTTP) GetMe(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	u, err := h.Svc.Get(c.Request().Context(), a.ID)
	if err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, transport.NewUserView(u), "User profile retrieved successfully")
}

func (h *UsersHTTP) UpdateMe(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	u, err := h.Svc.UpdateSelf(c.Request().Context(), a, req.Input())
	if err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, transport.NewUserView(u), "User profile updated successfully")
}

func (h *UsersHTTP) DeleteMe(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteSelf(c.Request().Context(), a); err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, nil, "User deleted successfully")
}

func (h *UsersHTTP) Get(c echo.Context) error {
	u, err := h.Svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, transport.NewUserView(u), "User retrieved successfully")
}

func (h *UsersHTTP) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	u, err := h.Svc.Update(c.Request().Context(), a, c.Param("id"), req.Input())
	if err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, transport.NewUserView(u), "User updated successfully")
}

func (h *UsersHTTP) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(c.Request().Context(), a, c.Param("id")); err != nil {
		return httpError(c, err, "unauthorized")
	}
	return respond(c, http.StatusOK, nil, "User deleted successfully")
}
