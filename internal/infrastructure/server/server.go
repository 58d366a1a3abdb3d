// Package server wires configuration, the surface engine, and the three
// core components into one HTTP/WebSocket listener.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/luminabrowser/lumina/host/internal/api/http"
	"github.com/luminabrowser/lumina/host/internal/api/middleware"
	"github.com/luminabrowser/lumina/host/internal/api/ws"
	"github.com/luminabrowser/lumina/host/internal/domain/agent"
	"github.com/luminabrowser/lumina/host/internal/domain/tabs"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/config"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/monitoring"
	"github.com/luminabrowser/lumina/host/internal/relay"
	"github.com/luminabrowser/lumina/host/internal/surface"
	"github.com/luminabrowser/lumina/host/internal/surface/cdp"
)

// Server owns the host's long-lived state: the tab registry, the agent
// supervisor, the stream relay, and the listener they are exposed on.
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	router     *gin.Engine
	httpServer *http.Server

	hub        *ws.Hub
	engine     surface.Engine
	registry   *tabs.Registry
	supervisor *agent.Supervisor
	relay      *relay.Relay
}

// Option customizes server construction.
type Option func(*Server)

// WithEngine injects a surface engine, replacing the default CDP one.
// Used by tests and headless deployments.
func WithEngine(engine surface.Engine) Option {
	return func(s *Server) { s.engine = engine }
}

// New builds a fully wired server. Nothing listens until Run.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		logger:  logger.Named("server"),
		metrics: monitoring.NewMetrics(),
		hub:     ws.NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		engine, err := cdp.New(cdp.Options{
			Headless:  cfg.Browser.Headless,
			UserAgent: cfg.Browser.UserAgent,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start surface engine: %w", err)
		}
		s.engine = engine
	}

	s.registry = tabs.NewRegistry(s.engine, s.hub, logger, tabs.Layout{
		TopChromeHeight: cfg.Browser.TopChromeHeight,
		PanelWidth:      cfg.Browser.PanelWidth,
		WindowWidth:     cfg.Browser.WindowWidth,
		WindowHeight:    cfg.Browser.WindowHeight,
	}).
		WithMetrics(s.metrics).
		WithFaviconProbe(tabs.NewFaviconProbe()).
		WithHomeURLs(cfg.Browser.HomeURL, cfg.Browser.SearchURL)

	s.supervisor = agent.NewSupervisor(cfg.Agent, s.hub, logger).WithMetrics(s.metrics)
	s.relay = relay.NewRelay(cfg.Relay, s.hub, logger).WithMetrics(s.metrics)

	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(monitoring.Middleware(s.metrics))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(s.cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(s.registry, s.supervisor, s.relay)
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/tabs", handlers.ListTabs)
	router.GET("/agent", handlers.AgentStatus)
	router.GET("/metrics", s.metrics.Handler())

	bridge := ws.NewHandler(s.hub, s.registry, s.supervisor, s.relay, s.logger).
		WithMetrics(s.metrics)
	router.GET("/stream", bridge.HandleConnection)

	return router
}

// Run listens until the listener fails or Shutdown closes it.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	s.logger.Info("host listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown tears components down in dependency order: streams first so
// no event lands on a closing bridge, then the agent process, then every
// surface, then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	s.relay.AbortAll()
	s.supervisor.Shutdown()
	s.registry.Shutdown()
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("surface engine close failed", zap.Error(err))
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
