package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// maxRequestBody caps usage reports; admission requests carry no body.
const maxRequestBody = "64K"

// setupMiddleware installs the global chain. JWT and admission are attached per route.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: s.logPanic,
	}))
	s.echo.Use(s.middleware.Logging.RequestLogging())
	s.echo.Use(s.middleware.Metrics.CollectHTTPMetrics())
	s.echo.Use(middleware.BodyLimit(maxRequestBody))
}

func (s *Server) logPanic(c echo.Context, err error, stack []byte) error {
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"stack":  string(stack),
		}).WithError(err).Error("handler panicked")
	}
	return err
}
