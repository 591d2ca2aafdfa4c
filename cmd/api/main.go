package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/expert-call-booker/cmd/mainconfig"
	"github.com/wolfman30/expert-call-booker/internal/api/router"
	"github.com/wolfman30/expert-call-booker/internal/app/bootstrap"
	appconfig "github.com/wolfman30/expert-call-booker/internal/config"
	"github.com/wolfman30/expert-call-booker/internal/http/handlers"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

// A booking run drives a real browser through many pages, so responses can
// take minutes.
const runWriteTimeout = 20 * time.Minute

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting expert-call-booker API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"dry_run", cfg.DryRun,
	)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	reg := newRegistry()
	rt, err := bootstrap.Build(context.Background(), cfg, awsCfg, reg, logger)
	if err != nil {
		logger.Error("failed to wire booking runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	handler, err := buildHandler(cfg, rt, reg, logger)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}
	srv := newServer(cfg, handler)

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// In-flight runs see their request context canceled and return partial outcomes.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func buildHandler(cfg *appconfig.Config, rt *bootstrap.Runtime, reg *prometheus.Registry, logger *logging.Logger) (http.Handler, error) {
	bookings, err := handlers.NewBookingsHandler(rt.Orchestrator, logger)
	if err != nil {
		return nil, err
	}
	return router.New(&router.Config{
		Logger:             logger,
		Bookings:           bookings,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		OperatorJWTSecret:  cfg.AdminJWTSecret,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}), nil
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      runWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
