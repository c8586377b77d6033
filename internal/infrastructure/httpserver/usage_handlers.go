package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/helpers"
)

type recordUsageRequest struct {
	OperationClass   quota.OperationClass `json:"operation_class"`
	Model            string               `json:"model"`
	PromptTokens     int                  `json:"prompt_tokens"`
	CompletionTokens int                  `json:"completion_tokens"`
}

// recordUsage accepts realized usage from the downstream caller. The write is
// asynchronous so the response is always 202 once the body is valid.
func (s *Server) recordUsage(c echo.Context) error {
	principalID, err := helpers.GetPrincipalIDFromContext(c)
	if err != nil {
		return err
	}
	var req recordUsageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if _, ok := s.operations[req.OperationClass]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest, quota.ErrUnknownOperationClass.Error())
	}
	if req.PromptTokens < 0 || req.CompletionTokens < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "token counts must not be negative")
	}

	usage := quota.Usage{Model: req.Model, PromptTokens: req.PromptTokens, CompletionTokens: req.CompletionTokens}
	s.updater.RecordUsage(c.Request().Context(), principalID, req.OperationClass, usage, s.now())

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"principal":       principalID,
			"operation_class": req.OperationClass,
			"model":           req.Model,
			"tokens":          usage.TotalTokens(),
		}).Debug("usage accepted")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// getUsage returns the caller's tier, limits, live window counts and today's spend.
func (s *Server) getUsage(c echo.Context) error {
	principalID, err := helpers.GetPrincipalIDFromContext(c)
	if err != nil {
		return err
	}
	ops := s.operationList
	if q := c.QueryParam("operation_class"); q != "" {
		op := quota.OperationClass(q)
		if _, ok := s.operations[op]; !ok {
			return echo.NewHTTPError(http.StatusNotFound, quota.ErrUnknownOperationClass.Error())
		}
		ops = []quota.OperationClass{op}
	}

	report, err := s.reporter.Report(c.Request().Context(), principalID, ops, s.now())
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"principal": principalID}).WithError(err).Error("failed to build usage report")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "usage temporarily unavailable")
	}
	return c.JSON(http.StatusOK, report)
}
