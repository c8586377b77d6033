package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/helpers"
)

const HeaderRequestID = "X-Request-ID"

type LoggingMiddleware struct {
	logger *logrus.Logger
}

func NewLoggingMiddleware(logger *logrus.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// RequestLogging assigns a request id when the caller sent none and logs each request
// once it completes.
func (m *LoggingMiddleware) RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			rid := c.Request().Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, rid)

			err := next(c)

			if m.logger != nil {
				fields := logrus.Fields{
					"request_id":  rid,
					"method":      c.Request().Method,
					"path":        c.Path(),
					"status":      c.Response().Status,
					"duration_ms": time.Since(start).Milliseconds(),
				}
				if p, ok := helpers.GetPrincipalIDRaw(c); ok {
					fields["principal"] = p
				}
				if op, ok := helpers.GetOperationClassRaw(c); ok {
					fields["operation_class"] = op
				}
				m.logger.WithFields(fields).Debug("request completed")
			}
			return err
		}
	}
}
