package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/mocks"
	"github.com/lorrc/team-kpi-backend/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newKPIService(f fixture, rows map[string][]domain.RawRow, failing map[string]error) (*services.KPIService, *mocks.MockChannelSource, *mocks.MockDirectory) {
	source := mocks.NewMockChannelSource()
	directory := mocks.NewMockDirectory()
	stubSources(source, rows, failing)
	directory.On("ListAgents", mock.Anything, mock.Anything).Return(f.agents(), nil)
	directory.On("ListTeamLeads", mock.Anything).Return(f.leads(), nil)
	return services.NewKPIService(source, directory, fastCollectorConfig(), testLogger()), source, directory
}

func sampleRows(f fixture) map[string][]domain.RawRow {
	lead := f.leadA.ID.String()
	return map[string][]domain.RawRow{
		"calls": {
			{"team_lead_id": lead, "agent_name": "Alice", "call_date": "2024-01-01", "call_count": 12},
			{"team_lead_id": lead, "agent_name": "Alice", "call_date": "2024-01-02", "call_count": 8},
			{"team_lead_id": f.leadB.ID.String(), "agent_name": "Carol", "call_date": "2024-01-02", "call_count": 4},
		},
		"emails": {
			{"team_lead_id": lead, "agent_name": "Alice", "date": "2024-01-01", "amount": 10},
		},
		"daily_sla": {
			{"team_lead_id": lead, "report_date": "2024-01-01", "sla_percentage": 92.5},
		},
		"agent_performance": {
			{"team_lead_id": lead, "agent_name": "Alice", "date": "2024-01-01", "tickets_resolved": 18, "customer_satisfaction": 4.5},
			{"team_lead_id": lead, "agent_name": "Alice", "date": "2024-01-02", "tickets_resolved": 0, "customer_satisfaction": 4.5},
		},
	}
}

func TestKPIService_Aggregate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	window := domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-03"}

	t.Run("success", func(t *testing.T) {
		svc, _, _ := newKPIService(f, sampleRows(f), nil)

		rows, err := svc.Aggregate(ctx, window)

		require.NoError(t, err)
		require.Len(t, rows, 6)
		assert.Equal(t, f.leadA.ID, rows[0].TeamLeadID)
		assert.Equal(t, 12, rows[0].Calls)
		assert.Equal(t, 10, rows[0].Emails)
		assert.InDelta(t, 92.5, rows[0].SLAPercentage, 1e-9)
		assert.Equal(t, 4, rows[4].Calls)
	})

	t.Run("invalid window is rejected before any lookup", func(t *testing.T) {
		svc, source, directory := newKPIService(f, nil, nil)

		_, err := svc.Aggregate(ctx, domain.AggregationWindow{StartDate: "2024-02-01", EndDate: "2024-01-01"})

		assert.ErrorIs(t, err, apperrors.ErrInvalidWindow)
		directory.AssertNotCalled(t, "ListAgents", mock.Anything, mock.Anything)
		source.AssertNotCalled(t, "FetchRows", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("directory failure aborts the pass", func(t *testing.T) {
		source := mocks.NewMockChannelSource()
		directory := mocks.NewMockDirectory()
		directory.On("ListAgents", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		directory.On("ListTeamLeads", mock.Anything).Return(f.leads(), nil).Maybe()
		svc := services.NewKPIService(source, directory, fastCollectorConfig(), testLogger())

		_, err := svc.Aggregate(ctx, window)

		assert.ErrorIs(t, err, apperrors.ErrDirectoryUnavailable)
		source.AssertNotCalled(t, "FetchRows", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown team lead", func(t *testing.T) {
		svc, _, _ := newKPIService(f, nil, nil)
		scoped := window
		scoped.TeamLeadID = ptr(uuid.New())

		_, err := svc.Aggregate(ctx, scoped)

		assert.ErrorIs(t, err, apperrors.ErrTeamLeadNotFound)
	})
}

func TestKPIService_Summarize(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	window := domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-03"}

	t.Run("every agent in directory order", func(t *testing.T) {
		svc, _, _ := newKPIService(f, sampleRows(f), nil)

		got, err := svc.Summarize(ctx, window, domain.SummaryScope{})

		require.NoError(t, err)
		require.Len(t, got, 3)
		alice := got[0]
		assert.Equal(t, f.alice.ID, alice.AgentID)
		assert.Equal(t, 20, alice.Totals.Calls)
		assert.Equal(t, 10, alice.Totals.Emails)
		assert.Equal(t, 18, alice.TicketsResolved)
		assert.Equal(t, 54, alice.EfficiencyScore)
		assert.Zero(t, got[1].DaysActive)
	})

	t.Run("team scope", func(t *testing.T) {
		svc, _, directory := newKPIService(f, sampleRows(f), nil)

		got, err := svc.Summarize(ctx, window, domain.SummaryScope{TeamLeadID: ptr(f.leadB.ID)})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, f.carol.ID, got[0].AgentID)
		directory.AssertCalled(t, "ListAgents", mock.Anything, ptr(f.leadB.ID))
	})

	t.Run("agent scope", func(t *testing.T) {
		svc, _, _ := newKPIService(f, sampleRows(f), nil)

		got, err := svc.Summarize(ctx, window, domain.SummaryScope{AgentID: ptr(f.carol.ID)})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 4, got[0].Totals.Calls)
	})

	t.Run("unknown agent", func(t *testing.T) {
		svc, _, _ := newKPIService(f, nil, nil)

		_, err := svc.Summarize(ctx, window, domain.SummaryScope{AgentID: ptr(uuid.New())})

		assert.ErrorIs(t, err, apperrors.ErrAgentNotFound)
	})
}

func TestKPIService_TopBottom(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	lead := f.leadA.ID
	window := domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-03", TeamLeadID: &lead}

	t.Run("ranks across every team", func(t *testing.T) {
		svc, _, directory := newKPIService(f, sampleRows(f), nil)

		got, err := svc.TopBottom(ctx, 1, window)

		require.NoError(t, err)
		require.Len(t, got.Top, 1)
		require.Len(t, got.Bottom, 1)
		assert.Equal(t, f.alice.ID, got.Top[0].AgentID)
		assert.Equal(t, f.carol.ID, got.Bottom[0].AgentID)
		directory.AssertCalled(t, "ListAgents", mock.Anything, (*uuid.UUID)(nil))
	})

	t.Run("limit must be positive", func(t *testing.T) {
		svc, _, directory := newKPIService(f, nil, nil)

		_, err := svc.TopBottom(ctx, 0, window)

		assert.ErrorIs(t, err, apperrors.ErrInvalidLimit)
		directory.AssertNotCalled(t, "ListTeamLeads", mock.Anything)
	})
}

func TestKPIService_RunPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	window := domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-03"}

	t.Run("snapshot is consistent and records failed sources", func(t *testing.T) {
		svc, _, _ := newKPIService(f, sampleRows(f), map[string]error{
			"qa_assessments": errors.New("relation does not exist"),
		})

		snap, err := svc.RunPass(ctx, window)

		require.NoError(t, err)
		assert.True(t, window.Equal(snap.Window))
		assert.Len(t, snap.Aggregates, 6)
		assert.Len(t, snap.TeamTotals, 2)
		assert.Len(t, snap.Summaries, 3)
		assert.NotEmpty(t, snap.AgentAggregates)
		assert.True(t, snap.Partial())
		require.Len(t, snap.Failures, 1)
		assert.Equal(t, "qa_assessments", snap.Failures[0].Source)
		assert.False(t, snap.ComputedAt.IsZero())

		total := 0
		for _, a := range snap.Aggregates {
			total += a.Calls
		}
		teamTotal := 0
		for _, tt := range snap.TeamTotals {
			teamTotal += tt.Calls
		}
		assert.Equal(t, 24, total)
		assert.Equal(t, total, teamTotal)
	})

	t.Run("directory failure returns no snapshot", func(t *testing.T) {
		source := mocks.NewMockChannelSource()
		directory := mocks.NewMockDirectory()
		directory.On("ListAgents", mock.Anything, mock.Anything).Return(f.agents(), nil).Maybe()
		directory.On("ListTeamLeads", mock.Anything).Return(nil, errors.New("timeout"))
		svc := services.NewKPIService(source, directory, fastCollectorConfig(), testLogger())

		snap, err := svc.RunPass(ctx, window)

		assert.Nil(t, snap)
		assert.ErrorIs(t, err, apperrors.ErrDirectoryUnavailable)
	})
}

func TestKPIService_Rank(t *testing.T) {
	svc, _, _ := newKPIService(newFixture(), nil, nil)

	got, err := svc.Rank([]domain.PerformanceSummary{
		summary("low", 0, 0, 10, 0),
		summary("high", 0, 0, 90, 0),
	}, domain.DefaultRankOptions())

	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, names(got))
}
