package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/pmos-desktop/sei-gateway/internal/api/http"
	"github.com/pmos-desktop/sei-gateway/internal/api/middleware"
	"github.com/pmos-desktop/sei-gateway/internal/enrich"
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/config"
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/logging"
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/monitoring"
	"github.com/pmos-desktop/sei-gateway/internal/portal"
	"github.com/pmos-desktop/sei-gateway/internal/portal/browser"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	engine  portal.Engine
	browser *browser.Strategy
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
	return newServer(cfg, logger)
}

func newServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, fmt.Errorf("failed to load portal profile: %w", err)
	}

	logger.Info("Initializing SEI gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("login_url", profile.LoginURL),
		zap.String("strategy", cfg.Portal.Strategy),
		zap.Duration("portal_timeout", cfg.Portal.Timeout),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	client := portal.NewClient(profile, cfg.ClientOptions()).
		WithLogger(logger.Component("portal")).
		WithObserver(metrics)

	var (
		engine   portal.Engine = client
		strategy *browser.Strategy
	)
	if cfg.Portal.Strategy == portal.StrategyBrowser {
		strategy = browser.New(client, cfg.BrowserOptions()).WithLogger(logger.Component("browser"))
		engine = strategy
		logger.Info("Browser login strategy enabled",
			zap.Bool("headless", cfg.Browser.Headless),
			zap.Bool("remote", cfg.Browser.ControlURL != ""),
		)
	}

	var enricher *enrich.Pipeline
	if cfg.Portal.Enrich {
		enricher = enrich.New(time.Now)
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger.Logger))
	router.Use(middleware.AccessLog(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.GlobalRequestsPerSecond > 0 {
		logger.Info("Global rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.GlobalRequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.GlobalBurst),
		)
		router.Use(middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.GlobalRequestsPerSecond,
			Burst:             cfg.RateLimit.GlobalBurst,
		}))
	}

	handlers := apihttp.NewHandlers(engine, apihttp.Options{
		Enricher: enricher,
		Metrics:  metrics,
		Logger:   logger.Component("api"),
		Strategy: cfg.Portal.Strategy,
	})
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		engine:  engine,
		browser: strategy,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Error("Failed to close browser", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		} else {
			s.logger.Info("Closed browser")
		}
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
