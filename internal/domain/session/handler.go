package session

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.POST("/sessions/:id/steps/:step", h.SaveStep)
	api.GET("/sessions/:id/steps/:step", h.GetStep)
	api.GET("/sessions/:id/steps/:step/access", h.CheckAccess)
	api.GET("/sessions/:id/steps/:step/stale", h.CheckStale)
	api.POST("/sessions/:id/documents", h.AnalyzeDocument)
}

type saveStepRequest struct {
	FormData map[string]interface{} `json:"form_data"`
	AIData   map[string]string      `json:"ai_generated_data"`
	Files    map[string]FileMeta    `json:"files_uploaded"`
}

func stepParam(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("step"))
	if err != nil || !ValidStep(n) {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid step number")
	}
	return n, nil
}

func (h *Handler) CreateSession(c echo.Context) error {
	sess, err := h.svc.Create(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create session")
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SaveStep(c echo.Context) error {
	step, err := stepParam(c)
	if err != nil {
		return err
	}
	var req saveStepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for name, meta := range req.Files {
		if meta.UploadedAt.IsZero() {
			meta.UploadedAt = time.Now().UTC()
			req.Files[name] = meta
		}
	}

	err = h.svc.SaveStep(c.Request().Context(), c.Param("id"), step, req.FormData, req.AIData, req.Files)
	switch {
	case errors.Is(err, ErrStepLocked):
		return echo.NewHTTPError(http.StatusForbidden, "step prerequisites not met")
	case errors.Is(err, ErrInvalidStep):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step number")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save step")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"saved": true, "step": step})
}

func (h *Handler) GetStep(c echo.Context) error {
	step, err := stepParam(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetStep(c.Request().Context(), c.Param("id"), step)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.Is(err, ErrStepLocked):
		return echo.NewHTTPError(http.StatusForbidden, "step prerequisites not met")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) CheckAccess(c echo.Context) error {
	step, err := stepParam(c)
	if err != nil {
		return err
	}
	allowed, err := h.svc.CanAccessStep(c.Request().Context(), c.Param("id"), step)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"step": step, "allowed": allowed})
}

func (h *Handler) CheckStale(c echo.Context) error {
	step, err := stepParam(c)
	if err != nil {
		return err
	}
	stale, err := h.svc.NeedsRegeneration(c.Request().Context(), c.Param("id"), step)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"step": step, "needs_regeneration": stale})
}

type analyzeDocumentRequest struct {
	FileName  string `json:"file_name"`
	ImageData string `json:"image_data"`
}

func (h *Handler) AnalyzeDocument(c echo.Context) error {
	var req analyzeDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FileName == "" || req.ImageData == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_name and image_data are required")
	}
	insights, err := h.svc.AnalyzeDocument(c.Request().Context(), c.Param("id"), req.FileName, req.ImageData)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.Is(err, ErrStepLocked):
		return echo.NewHTTPError(http.StatusForbidden, "step prerequisites not met")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, "document analysis unavailable")
	}
	return c.JSON(http.StatusOK, map[string]string{"insights": insights})
}
