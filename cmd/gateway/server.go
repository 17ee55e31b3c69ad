// Package main assembles the gateway's routing/fallback pipeline and HTTP
// transport.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/corvusgate/gateway/api/handlers"
	"github.com/corvusgate/gateway/config"
	"github.com/corvusgate/gateway/internal/httpmw"
	"github.com/corvusgate/gateway/internal/metrics"
	"github.com/corvusgate/gateway/internal/server"
	"github.com/corvusgate/gateway/internal/telemetry"
	"github.com/corvusgate/gateway/llm"
	"github.com/corvusgate/gateway/llm/factory"
	"github.com/corvusgate/gateway/llm/router"
)

// Server wires the Model Registry, Provider Registry, Smart Router,
// Fallback Executor, and Performance/Health Monitors into one running
// gateway, then exposes them over HTTP.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler  *handlers.HealthHandler
	gatewayHandler *handlers.GatewayHandler

	providers   *llm.ProviderRegistry
	models      *llm.ModelRegistry
	healthMon   *llm.HealthMonitor
	performance *llm.PerformanceMonitor

	metricsCollector *metrics.Collector

	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer builds the full gateway pipeline from cfg. Providers that fail
// to initialize are logged and skipped rather than aborting startup, so a
// misconfigured backend doesn't take down routing for the rest.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger, otel: otelProviders}

	regCfg := factory.RegistryConfig{Default: cfg.Gateway.DefaultProvider}
	regCfg.Providers = make(map[string]factory.ProviderConfig, len(cfg.Gateway.Providers))
	for name, pc := range cfg.Gateway.Providers {
		regCfg.Providers[name] = factory.ProviderConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			Timeout: pc.Timeout,
			Extra:   pc.Extra,
		}
	}

	providerRegistry, err := factory.NewRegistryFromConfig(regCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("assemble provider registry: %w", err)
	}
	s.providers = providerRegistry

	models := llm.NewModelRegistry()
	s.seedModelsFromProviders(models)
	s.models = models

	direct := router.NewDirectRouter(nil)
	for modelID, m := range cfg.Gateway.DirectMappings {
		direct.Mappings[modelID] = router.DirectTarget{Provider: m.Provider, ProviderModelID: m.ProviderModelID}
	}

	s.performance = llm.NewPerformanceMonitor(llm.PerformanceThresholds{
		MinSuccessRate:  cfg.Gateway.MinSuccessRate,
		MaxAvgLatencyMs: cfg.Gateway.MaxAvgLatencyMs,
		MinSamples:      cfg.Gateway.MinSamples,
	}, llm.NewLogAlertSink(logger))

	cost := router.NewCostRouter(models)
	latency := router.NewLatencyRouter(models, s.performance)
	loadBal := router.NewLoadBalanceRouter(models, 0)
	quality := router.NewQualityRouter(models, nil)

	smartRouter := router.NewSmartRouter(models, providerRegistry, cfg.Gateway.ModelAliases, cfg.Gateway.ModelStrategies, direct, nil, cost, latency, quality, loadBal)
	embedRouter := router.NewEmbeddingRouter(models, cfg.Gateway.ModelAliases, direct)

	fallbackCfg := llm.FallbackExecutorConfig{
		MaxAttempts:       cfg.Gateway.FallbackMaxAttempts,
		PerAttemptTimeout: cfg.Gateway.FallbackAttemptTimeout,
	}
	executor := llm.NewFallbackExecutor(nil, fallbackCfg, s.performance, llm.NewLogAlertSink(logger), logger)

	s.gatewayHandler = handlers.NewGatewayHandler(smartRouter, embedRouter, executor, providerRegistry, models, logger)

	healthProviders := make(map[string]llm.Provider, providerRegistry.Len())
	for _, name := range providerRegistry.List() {
		if p, ok := providerRegistry.Get(name); ok {
			healthProviders[name] = p
		}
	}
	s.healthMon = llm.NewHealthMonitor(healthProviders, llm.NewLogAlertSink(logger), logger)

	return s, nil
}

// seedModelsFromProviders populates the Model Registry with each
// registered provider's dynamically discovered models. Providers without
// a list-models endpoint, or that error out, are simply skipped; the
// Direct Router and administrator-configured aliases remain the fallback
// path for those.
func (s *Server) seedModelsFromProviders(models *llm.ModelRegistry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range s.providers.List() {
		p, ok := s.providers.Get(name)
		if !ok {
			continue
		}
		list, err := p.ListModels(ctx)
		if err != nil || len(list) == 0 {
			continue
		}
		// ListModels only reports id/ownership (mirroring the OpenAI
		// /v1/models shape); capability flags are left to the hard-coded
		// catalogue or administrator overrides, which take precedence
		// over nothing here but are themselves never overwritten by this
		// dynamic load (see ModelRegistry's source precedence).
		entries := make([]llm.ModelInfo, 0, len(list))
		for _, m := range list {
			entries = append(entries, llm.ModelInfo{
				ID:                 name + "." + m.ID,
				Provider:           name,
				ProviderModelID:    m.ID,
				SupportsCompletion: true,
			})
		}
		models.LoadDynamic(entries)
	}
}

// Start brings up the HTTP and metrics listeners. Non-blocking: callers
// should follow with WaitForShutdown.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("gateway", s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	s.logger.Info("gateway servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Int("providers", s.providers.Len()),
		zap.Int("models", len(s.models.List())),
	)
	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/v1/completions", s.gatewayHandler.HandleCompletion)
	mux.HandleFunc("/v1/completions/stream", s.gatewayHandler.HandleStream)
	mux.HandleFunc("/v1/embeddings", s.gatewayHandler.HandleEmbedding)
	mux.HandleFunc("/v1/models", s.gatewayHandler.HandleListModels)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	var ctx context.Context
	ctx, s.bgCancel = context.WithCancel(context.Background())
	handler := httpmw.Chain(mux,
		httpmw.Recovery(s.logger),
		httpmw.RequestID(),
		httpmw.SecurityHeaders(),
		httpmw.RequestLogger(s.logger),
		httpmw.MetricsMiddleware(s.metricsCollector),
		httpmw.OTelTracing(),
		httpmw.CORS(s.cfg.Server.CORSAllowedOrigins),
		httpmw.RateLimiter(ctx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		httpmw.APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a termination signal or server error
// arrives, then shuts everything down gracefully.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown tears down both listeners, the health monitor's background
// probe loop, and telemetry exporters, in that order.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.healthMon != nil {
		s.healthMon.Stop()
	}
	if s.bgCancel != nil {
		s.bgCancel()
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("graceful shutdown completed")
}
