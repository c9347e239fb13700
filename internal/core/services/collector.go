package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
)

// CollectorConfig configures source fetching.
type CollectorConfig struct {
	Retry        RetryConfig
	FetchTimeout time.Duration
}

// DefaultCollectorConfig returns the collector defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Retry:        DefaultRetryConfig(),
		FetchTimeout: 10 * time.Second,
	}
}

// Collector fetches every source table of a window and normalizes the rows.
type Collector struct {
	source ports.ChannelSource
	tables []domain.SourceTable
	cfg    CollectorConfig
	logger *slog.Logger
}

// NewCollector creates a collector over every registered source table.
func NewCollector(source ports.ChannelSource, cfg CollectorConfig, logger *slog.Logger) *Collector {
	return &Collector{
		source: source,
		tables: domain.SourceTables,
		cfg:    cfg,
		logger: logger.With("component", "collector"),
	}
}

type fetchResult struct {
	rows []domain.RawRow
	err  error
}

// Collect fetches all sources concurrently and waits for every one of them.
// A failing source contributes nothing and is listed in Collection.Failures;
// it never fails the collection as a whole.
func (c *Collector) Collect(ctx context.Context, window domain.AggregationWindow, roster *domain.Roster) *domain.Collection {
	query := domain.QueryFor(window)
	results := make([]fetchResult, len(c.tables))

	var g errgroup.Group
	for i, table := range c.tables {
		g.Go(func() error {
			rows, err := c.fetch(ctx, table, query)
			results[i] = fetchResult{rows: rows, err: err}
			return nil
		})
	}
	_ = g.Wait()

	col := &domain.Collection{}
	for i, table := range c.tables {
		res := results[i]
		if res.err != nil {
			c.logger.Warn("source fetch failed, continuing without it",
				"source", table.Name,
				"error", res.err,
			)
			col.Failures = append(col.Failures, domain.SourceFailure{
				Source:  table.Name,
				Message: res.err.Error(),
				Err:     res.err,
			})
			continue
		}
		normalizeRows(table, res.rows, window, roster, col)
	}

	if col.Skipped > 0 || col.Unmatched > 0 {
		c.logger.Debug("rows needed coercion",
			"skipped", col.Skipped,
			"unmatched_agents", col.Unmatched,
		)
	}
	return col
}

// fetch runs one source fetch, retrying transient failures with exponential backoff.
func (c *Collector) fetch(ctx context.Context, table domain.SourceTable, q domain.RecordQuery) ([]domain.RawRow, error) {
	var rows []domain.RawRow
	attempt := 0

	op := func() error {
		attempt++
		fetchCtx := ctx
		if c.cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
			defer cancel()
		}

		r, err := c.source.FetchRows(fetchCtx, table, q)
		if err != nil {
			if ctx.Err() != nil || !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		rows = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying source fetch",
			"source", table.Name,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, c.cfg.Retry.policy(ctx), notify); err != nil {
		return nil, err
	}
	return rows, nil
}

// normalizeRows coerces one table's native rows into the common record shapes.
func normalizeRows(
	table domain.SourceTable,
	rows []domain.RawRow,
	window domain.AggregationWindow,
	roster *domain.Roster,
	col *domain.Collection,
) {
	for _, row := range rows {
		date, ok := domain.CoerceDate(row[table.DateColumn])
		if !ok {
			col.Skipped++
			continue
		}
		if !window.Contains(date) {
			continue
		}

		var (
			name    string
			agent   domain.Agent
			matched bool
		)
		if table.AgentColumn != "" {
			name = domain.CoerceText(row[table.AgentColumn])
			agent, matched = roster.Resolve(name)
			if name != "" && !matched {
				col.Unmatched++
			}
		}

		leadID, ok := domain.CoerceUUID(row[table.TeamLeadColumn])
		if !ok {
			if !matched {
				col.Skipped++
				continue
			}
			leadID = agent.TeamLeadID
		}
		if !window.InScope(leadID) {
			continue
		}

		var agentID *uuid.UUID
		if matched {
			id := agent.ID
			agentID = &id
		}

		switch table.Kind {
		case domain.SourceKindChannel:
			rec := domain.InteractionRecord{
				Channel:    table.Channel,
				TeamLeadID: leadID,
				AgentName:  name,
				AgentID:    agentID,
				Date:       date,
				Count:      domain.CoerceCount(row[table.CountColumn]),
			}
			col.Interactions = append(col.Interactions, rec)

		case domain.SourceKindSLA:
			pct, ok := domain.CoerceFloat(row[table.PercentageColumn])
			if !ok {
				continue
			}
			col.SLA = append(col.SLA, domain.SLARecord{
				TeamLeadID: leadID,
				Date:       date,
				Percentage: domain.Clamp(pct, 0, 100),
			})

		case domain.SourceKindPerformance:
			sat, hasSat := domain.CoerceFloat(row[table.SatisfactionColumn])
			col.Performance = append(col.Performance, domain.PerformanceRecord{
				TeamLeadID:           leadID,
				AgentName:            name,
				AgentID:              agentID,
				Date:                 date,
				TicketsResolved:      domain.CoerceCount(row[table.ResolvedColumn]),
				CustomerSatisfaction: domain.Clamp(sat, 0, domain.MaxSatisfaction),
				HasSatisfaction:      hasSat,
			})
		}
	}
}
