package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/careintake/intake/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the template console; every route requires the
// admin role.
func (h *Handler) RegisterRoutes(group *echo.Group) {
	adm := group.Group("/prompt-templates", auth.RequireRole("admin"))
	adm.GET("", h.ListTemplates)
	adm.GET("/:name", h.GetTemplate)
	adm.PUT("/:name", h.UpdateTemplate)
	adm.POST("/:name/restore", h.RestoreTemplate)
	adm.GET("/:name/backups", h.ListBackups)
}

func editor(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) ListTemplates(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	t, err := h.svc.Get(c.Request().Context(), c.Param("name"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

type updateTemplateRequest struct {
	Content string `json:"content"`
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	var req updateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.svc.Update(c.Request().Context(), c.Param("name"), req.Content, editor(c))
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	case errors.Is(err, ErrEmptyContent):
		return echo.NewHTTPError(http.StatusBadRequest, "content must not be empty")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"name": c.Param("name"), "updated": "true"})
}

func (h *Handler) RestoreTemplate(c echo.Context) error {
	err := h.svc.Restore(c.Request().Context(), c.Param("name"), editor(c))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"name": c.Param("name"), "restored": "true"})
}

func (h *Handler) ListBackups(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	backups, err := h.svc.ListBackups(c.Request().Context(), c.Param("name"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, backups)
}
