package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/team-kpi-backend/internal/adapters/secondary/changefeed"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
)

// DefaultNotifyChannel is the channel the notify trigger publishes on.
const DefaultNotifyChannel = "kpi_table_changes"

// ChangeListener turns Postgres NOTIFY messages into change events. The
// payload of each notification is the name of the table that changed.
type ChangeListener struct {
	*changefeed.Registry

	pool    *pgxpool.Pool
	channel string
	logger  *slog.Logger

	// MaxReconnectInterval caps the wait between reconnect attempts.
	MaxReconnectInterval time.Duration
}

var _ ports.ChangeFeed = (*ChangeListener)(nil)

func NewChangeListener(pool *pgxpool.Pool, channel string, logger *slog.Logger) *ChangeListener {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &ChangeListener{
		Registry:             changefeed.NewRegistry(),
		pool:                 pool,
		channel:              channel,
		logger:               logger.With("component", "change_listener"),
		MaxReconnectInterval: 30 * time.Second,
	}
}

// Run listens until ctx is cancelled, reconnecting with exponential backoff
// whenever the connection drops. Changes made while disconnected cannot be
// replayed, so every subscribed table is notified after a reconnect.
func (l *ChangeListener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = l.MaxReconnectInterval
	b.MaxElapsedTime = 0

	connected := false
	for {
		err := l.listen(ctx, func() {
			b.Reset()
			if connected {
				l.logger.Info("change listener reconnected", "channel", l.channel)
				l.NotifyAll()
			}
			connected = true
		})
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		l.logger.Warn("change listener disconnected, reconnecting",
			"channel", l.channel,
			"error", err,
			"retry_in", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (l *ChangeListener) listen(ctx context.Context, onListening func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		// A listening connection must not go back to the pool as is.
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlistenCtx, "UNLISTEN *"); err != nil {
			_ = conn.Conn().Close(unlistenCtx)
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen on %s: %w", l.channel, err)
	}
	l.logger.Debug("listening for table changes", "channel", l.channel)
	onListening()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.dispatch(strings.TrimSpace(n.Payload))
	}
}

func (l *ChangeListener) dispatch(table string) {
	if l.Dispatch(table) == 0 {
		l.logger.Debug("change on unwatched table", "table", table)
	}
}
