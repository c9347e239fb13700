package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
)

// KPIService runs the collect, aggregate and summarize pipeline.
type KPIService struct {
	directory  ports.Directory
	collector  *Collector
	aggregator *Aggregator
	summarizer *Summarizer
	logger     *slog.Logger
	now        func() time.Time
}

var _ ports.KPIService = (*KPIService)(nil)

// NewKPIService creates a new KPI service
func NewKPIService(
	source ports.ChannelSource,
	directory ports.Directory,
	cfg CollectorConfig,
	logger *slog.Logger,
) *KPIService {
	return &KPIService{
		directory:  directory,
		collector:  NewCollector(source, cfg, logger),
		aggregator: NewAggregator(),
		summarizer: NewSummarizer(),
		logger:     logger.With("component", "kpi_service"),
		now:        time.Now,
	}
}

// passInput is the directory snapshot and collected records of one window.
type passInput struct {
	roster     *domain.Roster
	collection *domain.Collection
}

// load validates the window, looks up the directory and collects every source.
// Directory failures abort; source failures are carried in the collection.
func (s *KPIService) load(ctx context.Context, window domain.AggregationWindow) (*passInput, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	roster, err := s.loadDirectory(ctx, window.TeamLeadID)
	if err != nil {
		return nil, err
	}
	if window.TeamLeadID != nil && !roster.HasTeamLead(*window.TeamLeadID) {
		return nil, apperrors.ErrTeamLeadNotFound
	}

	col := s.collector.Collect(ctx, window, roster)
	return &passInput{roster: roster, collection: col}, nil
}

func (s *KPIService) loadDirectory(ctx context.Context, teamLeadID *uuid.UUID) (*domain.Roster, error) {
	var (
		agents []domain.Agent
		leads  []domain.TeamLead
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		agents, err = s.directory.ListAgents(gctx, teamLeadID)
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		leads, err = s.directory.ListTeamLeads(gctx)
		if err != nil {
			return fmt.Errorf("list team leads: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDirectoryUnavailable, err)
	}

	roster := domain.NewRoster(agents, leads)
	for _, c := range roster.Collisions() {
		s.logger.Warn("agent name shared by several directory entries, first match wins",
			"name", c.Name,
			"winner", c.Winner,
			"shadowed", len(c.Shadowed),
		)
	}
	return roster, nil
}

// Aggregate returns the zero-filled daily aggregates of the window.
func (s *KPIService) Aggregate(ctx context.Context, window domain.AggregationWindow) ([]domain.DailyAggregate, error) {
	in, err := s.load(ctx, window)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(window, in.collection, in.roster), nil
}

// AggregateByAgent returns the per-agent daily aggregates of the window.
func (s *KPIService) AggregateByAgent(ctx context.Context, window domain.AggregationWindow) ([]domain.AgentDailyAggregate, error) {
	in, err := s.load(ctx, window)
	if err != nil {
		return nil, err
	}
	return s.aggregator.AggregateByAgent(window, in.collection, in.roster), nil
}

// TeamTotals returns window totals per team lead.
func (s *KPIService) TeamTotals(ctx context.Context, window domain.AggregationWindow) ([]domain.TeamTotals, error) {
	in, err := s.load(ctx, window)
	if err != nil {
		return nil, err
	}
	return s.aggregator.TeamTotals(window, in.collection, in.roster), nil
}

// Summarize returns one summary per agent in scope. A scoped team lead
// overrides the window's team; a scoped agent narrows the result to that agent.
func (s *KPIService) Summarize(ctx context.Context, window domain.AggregationWindow, scope domain.SummaryScope) ([]domain.PerformanceSummary, error) {
	if scope.TeamLeadID != nil {
		window.TeamLeadID = scope.TeamLeadID
	}

	in, err := s.load(ctx, window)
	if err != nil {
		return nil, err
	}

	agents := agentsInScope(in.roster.Agents(), window)
	if scope.AgentID != nil {
		agent, ok := in.roster.Agent(*scope.AgentID)
		if !ok || !window.InScope(agent.TeamLeadID) {
			return nil, apperrors.ErrAgentNotFound
		}
		agents = []domain.Agent{agent}
	}

	daily := s.aggregator.AggregateByAgent(window, in.collection, in.roster)
	return s.summarizer.Summarize(agents, daily), nil
}

// Rank filters and orders summaries.
func (s *KPIService) Rank(summaries []domain.PerformanceSummary, opts domain.RankOptions) ([]domain.RankingEntry, error) {
	return Rank(summaries, opts)
}

// TopBottom ranks every agent across all teams and returns the best and worst n.
func (s *KPIService) TopBottom(ctx context.Context, n int, window domain.AggregationWindow) (*domain.TopBottom, error) {
	if n < 1 {
		return nil, apperrors.ErrInvalidLimit
	}
	summaries, err := s.Summarize(ctx, window.WithoutTeam(), domain.SummaryScope{})
	if err != nil {
		return nil, err
	}
	return SelectTopBottom(summaries, n)
}

// RunPass computes every derived collection of the window from one directory
// lookup and one collection, so they are mutually consistent.
func (s *KPIService) RunPass(ctx context.Context, window domain.AggregationWindow) (*domain.Snapshot, error) {
	start := s.now()

	in, err := s.load(ctx, window)
	if err != nil {
		return nil, err
	}

	daily := s.aggregator.AggregateByAgent(window, in.collection, in.roster)
	snapshot := &domain.Snapshot{
		Window:          window,
		Aggregates:      s.aggregator.Aggregate(window, in.collection, in.roster),
		AgentAggregates: daily,
		TeamTotals:      s.aggregator.TeamTotals(window, in.collection, in.roster),
		Summaries:       s.summarizer.Summarize(agentsInScope(in.roster.Agents(), window), daily),
		Failures:        in.collection.Failures,
		Collisions:      in.roster.Collisions(),
		ComputedAt:      s.now().UTC(),
	}

	s.logger.Info("aggregation pass complete",
		"start_date", window.StartDate,
		"end_date", window.EndDate,
		"aggregates", len(snapshot.Aggregates),
		"summaries", len(snapshot.Summaries),
		"failed_sources", len(snapshot.Failures),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return snapshot, nil
}

func agentsInScope(agents []domain.Agent, window domain.AggregationWindow) []domain.Agent {
	if window.TeamLeadID == nil {
		return agents
	}
	scoped := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if a.TeamLeadID == *window.TeamLeadID {
			scoped = append(scoped, a)
		}
	}
	return scoped
}
