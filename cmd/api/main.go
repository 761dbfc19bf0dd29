package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/figures-solutions/leadchat/cmd/mainconfig"
	"github.com/figures-solutions/leadchat/internal/api/router"
	"github.com/figures-solutions/leadchat/internal/app/bootstrap"
	appconfig "github.com/figures-solutions/leadchat/internal/config"
	"github.com/figures-solutions/leadchat/internal/http/middleware"
	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/internal/observability/metrics"
	"github.com/figures-solutions/leadchat/internal/webchat"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

func main() {
	adminTokenFor := flag.String("admin-token", "", "print an admin token for the given subject and exit")
	adminTokenTTL := flag.Duration("admin-token-ttl", 24*time.Hour, "lifetime of the token printed by -admin-token")
	flag.Parse()

	cfg := appconfig.Load()

	if *adminTokenFor != "" {
		token, err := middleware.IssueAdminToken(cfg.AdminJWTSecret, *adminTokenFor, *adminTokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting leadchat API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildHandler wires every dependency named by cfg. cleanup releases pools and
// clients opened along the way.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	metricsHandler, leadMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	store := bootstrap.BuildSessionStore(redisClient, cfg.ChatSessionTTL, logger)

	pool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		closers = append(closers, pool.Close)
		logger.Info("submission log stored in postgres")
	}
	repo := bootstrap.BuildRepository(pool)

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = &loaded
	}
	email := bootstrap.BuildEmailSender(cfg, awsCfg, logger)

	stack := bootstrap.BuildLeadStack(cfg, repo, email, leadMetrics, logger)
	engines, err := bootstrap.BuildEngines(cfg, stack.Chat, leadMetrics, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	endpoint := leads.NewEndpoint(stack.Service, !cfg.IsProduction(), logger)
	routerCfg := &router.Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(endpoint, stack.Service, logger),
		ChatHandler:        webchat.NewHandler(store, logger, engines...),
		MetricsHandler:     metricsHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	return router.New(routerCfg), cleanup, nil
}

func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewLeadMetrics(reg)
}
