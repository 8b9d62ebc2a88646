package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/invoice-extract/internal/evaluation"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
)

// evaluateRequest scores a single pair, or a batch when Pairs is set.
type evaluateRequest struct {
	GroundTruth map[string]any    `json:"ground_truth" validate:"required_without=Pairs"`
	Prediction  map[string]any    `json:"prediction"`
	Pairs       []evaluation.Pair `json:"pairs" validate:"omitempty,dive"`
}

type exportEvaluationRequest struct {
	Rows []evaluation.Row `json:"rows" validate:"min=1"`
}

func (s *HTTPServer) evaluate(c echo.Context) error {
	var req evaluateRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if len(req.Pairs) == 0 {
		return c.JSON(http.StatusOK, evaluation.Evaluate(req.GroundTruth, req.Prediction))
	}
	rows, sum, err := evaluation.EvaluateBatch(c.Request().Context(), req.Pairs, s.logger)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"rows": rows, "summary": sum})
}

func (s *HTTPServer) exportEvaluation(c echo.Context) error {
	if s.deps.Export == nil {
		return unavailable("export")
	}
	var req exportEvaluationRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	data, err := s.deps.Export.EvaluationXLSX(req.Rows, evaluation.Summarize(req.Rows))
	if err != nil {
		return err
	}
	return attachment(c, "evaluation.xlsx", data)
}

func attachment(c echo.Context, name string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, export.ContentType, data)
}
