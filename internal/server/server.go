package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cazayus/wshub/internal/api/middleware"
	"github.com/cazayus/wshub/internal/domain/lifecycle"
	"github.com/cazayus/wshub/internal/domain/properties"
	"github.com/cazayus/wshub/internal/infrastructure/config"
	"github.com/cazayus/wshub/internal/infrastructure/monitoring"
	"github.com/cazayus/wshub/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps holds the components the HTTP API reports on
type Deps struct {
	Hub      *lifecycle.Hub
	Registry *service.Registry
	Catalog  *service.Catalog
	Metrics  *monitoring.Metrics
	Saver    *properties.Saver
	Logger   *zap.Logger
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(middleware.CORS(middleware.CORSFromConfig(cfg.CORS)))
	if cfg.RateLimit.Enabled {
		limits := middleware.RateLimitFromConfig(cfg.RateLimit)
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(limits))
		} else {
			router.Use(middleware.RateLimit(limits))
		}
	}
	if deps.Metrics != nil {
		router.Use(monitoring.Middleware(deps.Metrics))
	}

	handlers := NewHandlers(deps.Hub, deps.Registry, deps.Catalog).WithSaver(deps.Saver)

	router.GET("/health", handlers.Health)
	router.GET("/workspaces", handlers.ListWorkspaces)
	router.GET("/workspaces/:id", handlers.GetWorkspace)
	router.GET("/workspaces/:id/documents", handlers.ListDocuments)
	router.PUT("/workspaces/:id/documents", handlers.SaveDocument)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", c.ClientIP()),
		)
	}
}
