package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/lorrc/team-kpi-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/team-kpi-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/team-kpi-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/team-kpi-backend/internal/auth"
	"github.com/lorrc/team-kpi-backend/internal/config"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"github.com/lorrc/team-kpi-backend/internal/core/services"
)

// NewServeCmd creates the 'serve' command running the HTTP API and the live
// aggregation loop.
func NewServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the KPI API server",
		Long: `Start the HTTP API, the WebSocket hub and, unless LIVE_ENABLED=false,
the live aggregation loop watching the source tables.

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Example: `  teamkpi serve
  teamkpi serve --env-file deploy/staging.env
  SOURCE_DRIVER=sqlite SQLITE_PATH=data/kpi.db teamkpi serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *globalOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stdout)
	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"source_driver", cfg.Source.Driver,
	)

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	kpiService := services.NewKPIService(b.source, b.directory, collectorConfig(cfg.Fetch), logger)
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	hub := websocket.NewHub(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	var (
		live      ports.LiveService
		liveStats httpAdapter.LiveStatsProvider
	)
	if cfg.Live.Enabled {
		aggregator, err := startLive(gctx, cfg, kpiService, b.feed, hub, logger)
		if err != nil {
			return err
		}
		defer aggregator.Stop()
		g.Go(func() error { return b.watch(gctx) })
		live, liveStats = aggregator, aggregator
	} else {
		logger.Info("live aggregation disabled")
	}

	var (
		generalRateLimiter *mw.RateLimiter
		refreshLimiter     func(http.Handler) http.Handler
	)
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		refreshLimiter = mw.NewRateLimitByKey(cfg.RateLimit.RefreshRPS, cfg.RateLimit.RefreshBurst).
			Middleware(mw.ClaimsKey)
	}

	errorHandler := httpAdapter.NewErrorHandler(logger)
	kpiHandler := httpAdapter.NewKPIHandler(kpiService, live, cfg.Live.DefaultWindowDays, errorHandler, logger)
	if refreshLimiter != nil {
		kpiHandler.WithRefreshLimiter(refreshLimiter)
	}
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, httpAdapter.WebSocketConfig{
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		IsDevelopment:   cfg.IsDevelopment(),
	}, logger)
	healthHandler := httpAdapter.NewHealthHandler(b.db, liveStats, cfg.App.Version)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TokenManager: tokenManager,
		KPI:          kpiHandler,
		Health:       healthHandler,
		WebSocket:    wsHandler,
		RateLimiter:  generalRateLimiter,
		CORSOrigins:  cfg.CORS.AllowedOrigins,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server shutdown complete")
	return err
}

// startLive seeds the state store with the trailing default window and
// pushes every published snapshot to the hub.
func startLive(
	ctx context.Context,
	cfg *config.Config,
	runner ports.PassRunner,
	feed ports.ChangeFeed,
	hub *websocket.Hub,
	logger *slog.Logger,
) (*services.LiveAggregator, error) {
	store := services.NewStateStore(domain.TrailingWindow(time.Now().UTC(), cfg.Live.DefaultWindowDays))
	aggregator := services.NewLiveAggregator(runner, feed, store, cfg.Live.Debounce, logger)

	aggregator.OnAggregateChange(func(snapshot domain.Snapshot) {
		if err := hub.BroadcastSnapshot(snapshot); err != nil {
			logger.Warn("failed to broadcast snapshot", "version", snapshot.Version, "error", err)
		}
	})

	if err := aggregator.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start live aggregation: %w", err)
	}
	return aggregator, nil
}
