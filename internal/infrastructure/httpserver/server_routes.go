package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	protected := api.Group("")
	protected.Use(s.middleware.JWT.RequireJWT())

	// one route per configured class; anything else falls through to echo's 404
	admissions := protected.Group("/admissions")
	for _, op := range s.operationList {
		admissions.POST("/"+op.String(), s.admit, s.middleware.Admission.Enforce(op))
	}

	protected.POST("/usage", s.recordUsage)
	protected.GET("/usage", s.getUsage)
}
