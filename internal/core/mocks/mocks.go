package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockChannelSource is a mock implementation of ports.ChannelSource
type MockChannelSource struct {
	mock.Mock
}

func NewMockChannelSource() *MockChannelSource {
	return &MockChannelSource{}
}

func (m *MockChannelSource) FetchRows(ctx context.Context, table domain.SourceTable, q domain.RecordQuery) ([]domain.RawRow, error) {
	args := m.Called(ctx, table, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawRow), args.Error(1)
}

// MockDirectory is a mock implementation of ports.Directory
type MockDirectory struct {
	mock.Mock
}

func NewMockDirectory() *MockDirectory {
	return &MockDirectory{}
}

func (m *MockDirectory) ListAgents(ctx context.Context, teamLeadID *uuid.UUID) ([]domain.Agent, error) {
	args := m.Called(ctx, teamLeadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Agent), args.Error(1)
}

func (m *MockDirectory) ListTeamLeads(ctx context.Context) ([]domain.TeamLead, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TeamLead), args.Error(1)
}

// MockChangeFeed is a mock implementation of ports.ChangeFeed
type MockChangeFeed struct {
	mock.Mock
}

func NewMockChangeFeed() *MockChangeFeed {
	return &MockChangeFeed{}
}

func (m *MockChangeFeed) Subscribe(table string, onChange func(domain.ChangeEvent)) (func(), error) {
	args := m.Called(table, onChange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockPassRunner is a mock implementation of ports.PassRunner
type MockPassRunner struct {
	mock.Mock
}

func NewMockPassRunner() *MockPassRunner {
	return &MockPassRunner{}
}

func (m *MockPassRunner) RunPass(ctx context.Context, window domain.AggregationWindow) (*domain.Snapshot, error) {
	args := m.Called(ctx, window)
	if fn, ok := args.Get(0).(func(context.Context, domain.AggregationWindow) (*domain.Snapshot, error)); ok {
		return fn(ctx, window)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

// MockSnapshotBroadcaster is a mock implementation of ports.SnapshotBroadcaster
type MockSnapshotBroadcaster struct {
	mock.Mock
}

func (m *MockSnapshotBroadcaster) BroadcastSnapshot(snapshot domain.Snapshot) error {
	args := m.Called(snapshot)
	return args.Error(0)
}

// MockKPIService is a mock implementation of ports.KPIService
type MockKPIService struct {
	mock.Mock
}

func NewMockKPIService() *MockKPIService {
	return &MockKPIService{}
}

func (m *MockKPIService) Aggregate(ctx context.Context, window domain.AggregationWindow) ([]domain.DailyAggregate, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DailyAggregate), args.Error(1)
}

func (m *MockKPIService) AggregateByAgent(ctx context.Context, window domain.AggregationWindow) ([]domain.AgentDailyAggregate, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AgentDailyAggregate), args.Error(1)
}

func (m *MockKPIService) TeamTotals(ctx context.Context, window domain.AggregationWindow) ([]domain.TeamTotals, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TeamTotals), args.Error(1)
}

func (m *MockKPIService) Summarize(ctx context.Context, window domain.AggregationWindow, scope domain.SummaryScope) ([]domain.PerformanceSummary, error) {
	args := m.Called(ctx, window, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PerformanceSummary), args.Error(1)
}

func (m *MockKPIService) Rank(summaries []domain.PerformanceSummary, opts domain.RankOptions) ([]domain.RankingEntry, error) {
	args := m.Called(summaries, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RankingEntry), args.Error(1)
}

func (m *MockKPIService) TopBottom(ctx context.Context, n int, window domain.AggregationWindow) (*domain.TopBottom, error) {
	args := m.Called(ctx, n, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TopBottom), args.Error(1)
}

func (m *MockKPIService) RunPass(ctx context.Context, window domain.AggregationWindow) (*domain.Snapshot, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

// MockLiveService is a mock implementation of ports.LiveService
type MockLiveService struct {
	mock.Mock
}

func NewMockLiveService() *MockLiveService {
	return &MockLiveService{}
}

func (m *MockLiveService) Snapshot() (domain.Snapshot, error) {
	args := m.Called()
	return args.Get(0).(domain.Snapshot), args.Error(1)
}

func (m *MockLiveService) Window() domain.AggregationWindow {
	args := m.Called()
	return args.Get(0).(domain.AggregationWindow)
}

func (m *MockLiveService) SetWindow(window domain.AggregationWindow) error {
	args := m.Called(window)
	return args.Error(0)
}

func (m *MockLiveService) Invalidate() {
	m.Called()
}

func (m *MockLiveService) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

func (m *MockLiveService) OnAggregateChange(listener func(domain.Snapshot)) func() {
	args := m.Called(listener)
	if args.Get(0) == nil {
		return func() {}
	}
	return args.Get(0).(func())
}

var (
	_ ports.ChannelSource       = (*MockChannelSource)(nil)
	_ ports.Directory           = (*MockDirectory)(nil)
	_ ports.ChangeFeed          = (*MockChangeFeed)(nil)
	_ ports.PassRunner          = (*MockPassRunner)(nil)
	_ ports.SnapshotBroadcaster = (*MockSnapshotBroadcaster)(nil)
	_ ports.KPIService          = (*MockKPIService)(nil)
	_ ports.LiveService         = (*MockLiveService)(nil)
)
