package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Write endpoints
	s.echo.POST("/mobile", s.handleMobileLocation)
	s.echo.POST("/comment", s.handleComment)

	// WebSocket upgrade paths. The default path serves location subscribers,
	// /comments serves the comment board. Non-upgrade requests to the root
	// fall through to 404, matching every other unknown path.
	s.echo.GET("/", s.handleLocationSocket)
	s.echo.GET("/comments", s.handleCommentSocket)
}
