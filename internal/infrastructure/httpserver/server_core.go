package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
	customMiddleware "github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	JWTSecret    string
	JWTIssuer    string
}

type ServerDeps struct {
	Gate             ports.EnforcementGate
	BudgetUpdater    ports.BudgetUpdater
	UsageReporter    ports.UsageReporter
	OperationClasses []quota.OperationClass
	HealthCheckers   []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	gate           ports.EnforcementGate
	updater        ports.BudgetUpdater
	reporter       ports.UsageReporter
	operations     map[quota.OperationClass]struct{}
	operationList  []quota.OperationClass
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
	now            func() time.Time
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true

	ops := make(map[quota.OperationClass]struct{}, len(deps.OperationClasses))
	for _, op := range deps.OperationClasses {
		ops[op] = struct{}{}
	}

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		gate:           deps.Gate,
		updater:        deps.BudgetUpdater,
		reporter:       deps.UsageReporter,
		operations:     ops,
		operationList:  deps.OperationClasses,
		healthCheckers: deps.HealthCheckers,
		now:            time.Now,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.Gate,
			logger,
			serverConfig.JWTSecret,
			serverConfig.JWTIssuer,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
