package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/helpers"
)

// DenialResponse is the 429 body: the decision plus a human readable error.
type DenialResponse struct {
	*quota.Decision
	Error string `json:"error"`
}

// AdmissionMiddleware runs the enforcement gate in front of a protected handler. It must
// be installed after RequireJWT.
type AdmissionMiddleware struct {
	gate   ports.EnforcementGate
	logger *logrus.Logger
	now    func() time.Time
}

func NewAdmissionMiddleware(gate ports.EnforcementGate, logger *logrus.Logger) *AdmissionMiddleware {
	return &AdmissionMiddleware{gate: gate, logger: logger, now: time.Now}
}

// Enforce gates the route on op.
func (m *AdmissionMiddleware) Enforce(op quota.OperationClass) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principalID, err := helpers.GetPrincipalIDFromContext(c)
			if err != nil {
				return err
			}

			d := m.gate.Admit(c.Request().Context(), principalID, op, m.now())
			helpers.SetOperationClass(c, op)
			helpers.SetDecision(c, d)
			helpers.WriteDecisionHeaders(c, d)

			if !d.Admitted {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"principal": principalID, "operation_class": op, "reason": d.Reason}).Debug("request rejected by admission gate")
				}
				msg := "request rejected"
				if err := d.Err(); err != nil {
					msg = err.Error()
				}
				return c.JSON(http.StatusTooManyRequests, DenialResponse{Decision: d, Error: msg})
			}
			return next(c)
		}
	}
}
