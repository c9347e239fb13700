package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/team-kpi-backend/internal/adapters/secondary/postgres"
	"github.com/lorrc/team-kpi-backend/internal/adapters/secondary/sqlite"
	"github.com/lorrc/team-kpi-backend/internal/config"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"github.com/lorrc/team-kpi-backend/internal/core/services"
)

// backend is the set of secondary adapters selected by SOURCE_DRIVER.
type backend struct {
	source    ports.ChannelSource
	directory ports.Directory
	feed      ports.ChangeFeed
	db        interface{ Ping(context.Context) error }

	// watch delivers change notifications until ctx is cancelled.
	watch func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Source.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Source.SQLitePath)
		if err != nil {
			return nil, err
		}
		watcher := sqlite.NewFileWatcher(db.Path(), cfg.Source.WatchDebounce, logger)
		logger.Info("sqlite database opened", "path", db.Path())

		return &backend{
			source:    sqlite.NewChannelRepository(db),
			directory: sqlite.NewDirectoryRepository(db),
			feed:      watcher,
			db:        db,
			watch:     watcher.Run,
			close:     func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		listener := postgres.NewChangeListener(pool, cfg.Source.NotifyChannel, logger)
		logger.Info("database connection established")

		return &backend{
			source:    postgres.NewChannelRepository(pool),
			directory: postgres.NewDirectoryRepository(pool),
			feed:      listener,
			db:        pool,
			watch:     listener.Run,
			close:     pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported source driver %q", cfg.Source.Driver)
	}
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

func collectorConfig(cfg config.FetchConfig) services.CollectorConfig {
	return services.CollectorConfig{
		Retry: services.RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.InitialBackoff,
			MaxInterval:     cfg.MaxBackoff,
		},
		FetchTimeout: cfg.Timeout,
	}
}
