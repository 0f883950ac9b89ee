package api

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"rhonull/app"
	"rhonull/internal/config"
)

// Server exposes the null distribution service over HTTP
type Server struct {
	router     *gin.Engine
	service    *app.NullDistributionService
	config     config.SimulationConfig
	httpServer *http.Server
}

// NewServer creates a server with its routes registered. The gin mode is set
// by the caller before construction.
func NewServer(service *app.NullDistributionService, cfg config.SimulationConfig) *Server {
	s := &Server{
		router:  gin.New(),
		service: service,
		config:  cfg,
	}
	s.httpServer = &http.Server{Handler: s.router}
	s.router.Use(gin.Logger(), gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/api/v1/null")
	v1.POST("/unconstrained", s.handleUnconstrained)
	v1.POST("/residual", s.handleResidual)
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("[API] Listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. A later Start returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("[API] Shutting down")
	return s.httpServer.Shutdown(ctx)
}
