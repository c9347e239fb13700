package ports

import (
	"context"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
)

// KPIService is the aggregation, summary and ranking engine.
type KPIService interface {
	Aggregate(ctx context.Context, window domain.AggregationWindow) ([]domain.DailyAggregate, error)
	AggregateByAgent(ctx context.Context, window domain.AggregationWindow) ([]domain.AgentDailyAggregate, error)
	TeamTotals(ctx context.Context, window domain.AggregationWindow) ([]domain.TeamTotals, error)
	Summarize(ctx context.Context, window domain.AggregationWindow, scope domain.SummaryScope) ([]domain.PerformanceSummary, error)
	Rank(summaries []domain.PerformanceSummary, opts domain.RankOptions) ([]domain.RankingEntry, error)
	TopBottom(ctx context.Context, n int, window domain.AggregationWindow) (*domain.TopBottom, error)
	PassRunner
}

// PassRunner runs one full aggregation and summarization pass.
type PassRunner interface {
	RunPass(ctx context.Context, window domain.AggregationWindow) (*domain.Snapshot, error)
}

// LiveService keeps published aggregates consistent with the sources.
type LiveService interface {
	Snapshot() (domain.Snapshot, error)
	Window() domain.AggregationWindow
	SetWindow(window domain.AggregationWindow) error
	Invalidate()
	Refresh(ctx context.Context) (*domain.Snapshot, error)
	OnAggregateChange(listener func(domain.Snapshot)) (unsubscribe func())
}
