package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Start blocks serving HTTP, or HTTPS when both certificate files are configured.
func (s *Server) Start() error {
	s.LogMetricsInitialization()

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	tls := s.config.TLSCertFile != "" && s.config.TLSKeyFile != ""
	s.logger.WithFields(logrus.Fields{
		"addr":              addr,
		"tls":               tls,
		"operation_classes": len(s.operations),
	}).Info("quota gate listening")

	if tls {
		return s.echo.StartTLS(addr, s.config.TLSCertFile, s.config.TLSKeyFile)
	}
	s.logger.Warn("TLS certificates not configured, serving plain HTTP")
	return s.echo.StartServer(&http.Server{
		Addr:         addr,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	})
}

// Shutdown stops accepting connections and waits for in-flight admissions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("quota gate draining connections")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
