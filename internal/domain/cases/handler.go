package cases

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careintake/intake/internal/domain/session"
	"github.com/careintake/intake/internal/platform/auth"
	"github.com/careintake/intake/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, review *echo.Group) {
	api.POST("/sessions/:id/submit", h.SubmitCase)
	api.GET("/referring-doctors", h.ListDoctors)
	api.GET("/referring-doctors/:id", h.GetDoctor)

	// Review endpoints require a clinician or admin token.
	reviewGroup := review.Group("", auth.RequireRole("admin", "physician"))
	reviewGroup.GET("/cases", h.ListCases)
	reviewGroup.GET("/cases/:number", h.GetCase)
	reviewGroup.PUT("/cases/:number/review", h.ReviewCase)
}

func (h *Handler) SubmitCase(c echo.Context) error {
	caseNumber, err := h.svc.Submit(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.Is(err, ErrNotComplete):
		return echo.NewHTTPError(http.StatusConflict, "assessment not marked complete")
	case errors.Is(err, ErrNoContact):
		return echo.NewHTTPError(http.StatusBadRequest, "patient contact is required before submission")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "submission failed")
	}
	return c.JSON(http.StatusCreated, map[string]string{"case_number": caseNumber})
}

func (h *Handler) ListCases(c echo.Context) error {
	p := pagination.FromContext(c)
	list, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, p.Limit, p.Offset))
}

func (h *Handler) GetCase(c echo.Context) error {
	found, err := h.svc.Get(c.Request().Context(), c.Param("number"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, found)
}

type reviewRequest struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback"`
}

func (h *Handler) ReviewCase(c echo.Context) error {
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.svc.Review(c.Request().Context(), c.Param("number"), req.Status, req.Feedback)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"case_number": c.Param("number"), "status": req.Status})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	return c.JSON(http.StatusOK, ReferringDoctors())
}

func (h *Handler) GetDoctor(c echo.Context) error {
	doc, ok := DoctorByID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "referring doctor not found")
	}
	return c.JSON(http.StatusOK, doc)
}
