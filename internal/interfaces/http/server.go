// Package http exposes the lifecycle engine and the administrative services
// over a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/reimbursement-tracker/internal/application/lifecycle"
	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/application/service"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/metrics"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthFunc reports overall health plus component details
type HealthFunc func(ctx context.Context) (bool, interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	Mode           string // gin mode: debug, release or test
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxUploadBytes: 10 << 20,
		Mode:           gin.ReleaseMode,
	}
}

// Dependencies are the services the API is built on
type Dependencies struct {
	Lifecycle lifecycle.Engine
	Auth      service.AuthService
	Notices   service.NoticeService
	Ledger    service.LedgerService
	Exports   service.ExportService
	Blobs     port.BlobStore
	Metrics   *metrics.Metrics // optional
	Health    HealthFunc       // optional
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	server := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.Middleware())
	}
	s.router.MaxMultipartMemory = s.config.MaxUploadBytes
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := newHandlers(s.deps, s.config.MaxUploadBytes, s.logger)

	s.router.GET("/health", h.health)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.POST("/register/", h.register)
		api.POST("/token/", h.token)
		api.POST("/token/refresh/", h.refresh)
		api.GET("/reimbursements/notices/", h.activeNotices)

		owned := api.Group("/reimbursements", h.requireUser)
		owned.GET("/", h.listOwn)
		owned.POST("/", h.createOwn)
		owned.GET("/:id/", h.getOwn)
		owned.PUT("/:id/", h.updateOwn)
		owned.PATCH("/:id/", h.updateOwn)
		owned.DELETE("/:id/", h.deleteOwn)
	}

	s.router.GET("/media/*key", h.requireUser, h.media)

	admin := s.router.Group("/admin/api", h.requireUser, h.requireAdmin)
	{
		admin.GET("/reimbursements", h.adminList)
		admin.GET("/reimbursements/:id", h.adminGet)
		admin.GET("/reimbursements/:id/history", h.adminHistory)
		admin.POST("/reimbursements/:id/approve", h.approve)
		admin.POST("/reimbursements/:id/reject", h.reject)
		admin.DELETE("/reimbursements/:id", h.adminDelete)
		admin.POST("/reimbursements/actions/:action", h.requestAction)
		admin.GET("/exports/*name", h.download)

		admin.GET("/notices", h.listNotices)
		admin.POST("/notices", h.createNotice)
		admin.PUT("/notices/:id", h.updateNotice)
		admin.DELETE("/notices/:id", h.deleteNotice)

		admin.GET("/ledger", h.listLedger)
		admin.POST("/ledger", h.createLedger)
		admin.GET("/ledger/balance", h.balance)
		admin.POST("/ledger/actions/export", h.exportLedger)
		admin.PUT("/ledger/:id", h.updateLedger)
		admin.DELETE("/ledger/:id", h.deleteLedger)

		admin.GET("/users", h.requireSuperuser, h.listUsers)
		admin.PATCH("/users/:id", h.requireSuperuser, h.updateUser)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
