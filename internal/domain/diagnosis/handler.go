package diagnosis

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careintake/intake/internal/domain/session"
)

type Handler struct {
	builder *Builder
}

func NewHandler(builder *Builder) *Handler {
	return &Handler{builder: builder}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sessions/:id/diagnosis", h.GenerateDiagnosis)
	api.GET("/sessions/:id/diagnosis", h.GetDiagnosis)
}

// GenerateDiagnosis always runs a fresh generation round.
func (h *Handler) GenerateDiagnosis(c echo.Context) error {
	cands, source, err := h.builder.BuildDiagnosis(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrStepLocked):
		return echo.NewHTTPError(http.StatusForbidden, "clinical analysis step not reachable yet")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "diagnosis generation failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"candidates": cands,
		"source":     source,
	})
}

// GetDiagnosis serves the cached candidate set, regenerating only when
// upstream edits made the cache stale.
func (h *Handler) GetDiagnosis(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	cands, fresh, err := h.builder.CachedDiagnosis(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if fresh {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"candidates": cands,
			"cached":     true,
		})
	}

	cands, source, err := h.builder.BuildDiagnosis(ctx, id)
	switch {
	case errors.Is(err, session.ErrStepLocked):
		return echo.NewHTTPError(http.StatusForbidden, "clinical analysis step not reachable yet")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "diagnosis generation failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"candidates": cands,
		"source":     source,
		"cached":     false,
	})
}
