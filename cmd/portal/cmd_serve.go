package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/app"
	httpapi "github.com/RevenueScotland/sets-online-portal-sub000/internal/http"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/config"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/httpserver"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/logger"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/redis"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit/publisher"
	auditmemory "github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit/store/memory"
)

const (
	shutdownTimeout = 10 * time.Second
	auditBuffer     = 256
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the return wizards over HTTP",
	Long: `Serves the LBTT and SLfT wizards. Configuration comes from the environment;
with REDIS_URL unset, wizard state lives in process memory and is lost on restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveFlags struct {
	addr      string
	redisURL  string
	logLevel  string
	logFormat string
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (overrides PORTAL_ADDR)")
	f.StringVar(&serveFlags.redisURL, "redis-url", "", "wizard cache Redis URL (overrides REDIS_URL)")
	f.StringVar(&serveFlags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	f.StringVar(&serveFlags.logFormat, "log-format", "", "json or text (overrides LOG_FORMAT)")
}

// applyServeFlags lets flags given on the command line win over the
// environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = serveFlags.addr
	}
	if flags.Changed("redis-url") {
		cfg.Redis.URL = serveFlags.redisURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = strings.ToLower(serveFlags.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = strings.ToLower(serveFlags.logFormat)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.FromEnv()
	applyServeFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	auditPublisher := publisher.NewPublisher(auditmemory.NewInMemoryStore(),
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	router, err := app.NewHandler(app.Deps{
		Config:   cfg,
		Logger:   log,
		Store:    store,
		Registry: prometheus.NewRegistry(),
		Audit:    auditPublisher,
		Health:   health,
	})
	if err != nil {
		return err
	}
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting portal", "addr", cfg.Server.Addr, "env", cfg.Server.Environment, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down portal")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore picks the wizard cache backend. Without a Redis URL the portal
// runs on the in-memory store and reports no health checker.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Store, httpapi.HealthChecker, func(), error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	if client == nil {
		log.Warn("REDIS_URL not set, wizard state is held in process memory")
		return cache.NewMemoryStore(), nil, func() {}, nil
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Error("closing redis client", "error", err)
		}
	}
	return cache.NewRedisStore(client.Client), client, closeClient, nil
}
