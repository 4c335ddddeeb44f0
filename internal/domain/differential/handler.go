package differential

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careintake/intake/internal/domain/diagnosis"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/differential/question", h.GenerateQuestion)
	api.POST("/differential/answer", h.ProcessAnswer)
}

type questionRequest struct {
	Candidates      []diagnosis.Candidate `json:"candidates"`
	ClinicalContext string                `json:"clinical_context"`
	History         []EliminationEvent    `json:"history"`
}

type answerRequest struct {
	Answer          string                `json:"answer"`
	Question        string                `json:"question"`
	Candidates      []diagnosis.Candidate `json:"candidates"`
	TargetCode      string                `json:"target_code"`
	ClinicalContext string                `json:"clinical_context"`
}

func (h *Handler) GenerateQuestion(c echo.Context) error {
	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Candidates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "candidates are required")
	}

	result, err := h.engine.GenerateQuestion(c.Request().Context(), req.Candidates, req.ClinicalContext, req.History)
	if errors.Is(err, ErrConverged) {
		return echo.NewHTTPError(http.StatusConflict, "candidate set already converged")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ProcessAnswer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Answer == "" || len(req.Candidates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "answer and candidates are required")
	}

	result, err := h.engine.ProcessAnswer(c.Request().Context(),
		req.Answer, req.Question, req.Candidates, req.TargetCode, req.ClinicalContext)
	if errors.Is(err, ErrConverged) {
		return echo.NewHTTPError(http.StatusConflict, "candidate set already converged")
	}
	if err != nil {
		// Transport failures are retryable; nothing was applied.
		return echo.NewHTTPError(http.StatusBadGateway, "elimination round failed, retry the round")
	}

	remaining := Remove(req.Candidates, result.EliminatedCode)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"eliminated_code": result.EliminatedCode,
		"reasoning":       result.Reasoning,
		"used_fallback":   result.UsedFallback,
		"remaining":       remaining,
		"converged":       len(remaining) <= TerminalSize,
	})
}
