package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	JWT       *JWTMiddleware
	Logging   *LoggingMiddleware
	Admission *AdmissionMiddleware
	Metrics   *MetricsMiddleware
}

func NewMiddlewareCollection(
	gate ports.EnforcementGate,
	logger *logrus.Logger,
	jwtSecret string,
	jwtIssuer string,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		JWT:       NewJWTMiddleware(jwtSecret, jwtIssuer, logger),
		Logging:   NewLoggingMiddleware(logger),
		Admission: NewAdmissionMiddleware(gate, logger),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
	}
}
