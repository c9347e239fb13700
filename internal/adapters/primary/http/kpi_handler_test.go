package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	mw "github.com/lorrc/team-kpi-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/team-kpi-backend/internal/auth"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/mocks"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"github.com/lorrc/team-kpi-backend/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pingOK struct{}

func (pingOK) Ping(context.Context) error { return nil }

type staticStats services.LiveStats

func (s staticStats) Stats() services.LiveStats { return services.LiveStats(s) }

type testServer struct {
	handler stdhttp.Handler
	tm      *auth.TokenManager
	kpi     *mocks.MockKPIService
	live    *mocks.MockLiveService
	window  domain.AggregationWindow
}

func newTestServer(t *testing.T, withLive bool) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &testServer{
		tm:     auth.NewTokenManager("test-secret", time.Hour),
		kpi:    mocks.NewMockKPIService(),
		window: domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-31"},
	}

	var live ports.LiveService
	health := NewHealthHandler(pingOK{}, nil, "test")
	if withLive {
		s.live = mocks.NewMockLiveService()
		s.live.On("Window").Return(s.window).Maybe()
		live = s.live
		health = NewHealthHandler(pingOK{}, staticStats{Running: true}, "test")
	}

	kpiHandler := NewKPIHandler(s.kpi, live, 30, NewErrorHandler(logger), logger).
		WithRefreshLimiter(mw.NewRateLimitByKey(0.001, 1).Middleware(mw.ClaimsKey))
	kpiHandler.now = func() time.Time { return time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC) }

	s.handler = NewRouter(RouterConfig{
		TokenManager: s.tm,
		KPI:          kpiHandler,
		Health:       health,
		Logger:       logger,
	})
	return s
}

func (s *testServer) token(t *testing.T, role auth.Role, team *uuid.UUID) string {
	t.Helper()
	token, err := s.tm.GenerateToken(uuid.New(), role, team)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func windowMatching(start, end string, lead *uuid.UUID) any {
	return mock.MatchedBy(func(w domain.AggregationWindow) bool {
		return w.Equal(domain.AggregationWindow{StartDate: start, EndDate: end, TeamLeadID: lead})
	})
}

func TestKPIHandler_Aggregates(t *testing.T) {
	s := newTestServer(t, true)
	lead := uuid.New()
	manager := s.token(t, auth.RoleManager, nil)

	t.Run("requires a token", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/aggregates", "", nil)
		assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	})

	t.Run("defaults to the live window", func(t *testing.T) {
		rows := []domain.DailyAggregate{{TeamLeadID: lead, Date: "2024-01-01", ChannelCounts: domain.ChannelCounts{Calls: 5}}}
		s.kpi.On("Aggregate", mock.Anything, windowMatching("2024-01-01", "2024-01-31", nil)).Return(rows, nil).Once()

		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/aggregates", manager, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)

		resp := decode[WindowedResponse[domain.DailyAggregate]](t, rec)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, 5, resp.Data[0].Calls)
		assert.Equal(t, "2024-01-31", resp.Window.EndDate)
	})

	t.Run("team totals view", func(t *testing.T) {
		totals := []domain.TeamTotals{{TeamLeadID: lead, SLAPercentage: 87.5}}
		s.kpi.On("TeamTotals", mock.Anything, windowMatching("2024-02-01", "2024-02-10", &lead)).Return(totals, nil).Once()

		rec := s.do(t, stdhttp.MethodGet,
			"/api/v1/kpi/aggregates?view=team-totals&start=2024-02-01&end=2024-02-10&teamLeadId="+lead.String(), manager, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		resp := decode[WindowedResponse[domain.TeamTotals]](t, rec)
		assert.InDelta(t, 87.5, resp.Data[0].SLAPercentage, 1e-9)
	})

	t.Run("invalid window", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/aggregates?start=2024-03-01&end=2024-02-01", manager, nil)
		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("malformed date is a field error", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/aggregates?start=yesterday", manager, nil)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
		resp := decode[ValidationErrorResponse](t, rec)
		assert.Contains(t, resp.Fields, "start")
	})

	t.Run("directory outage is a 503", func(t *testing.T) {
		s.kpi.On("Aggregate", mock.Anything, windowMatching("2024-01-05", "2024-01-06", nil)).
			Return(nil, errors.Join(apperrors.ErrDirectoryUnavailable, errors.New("conn refused"))).Once()
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/aggregates?start=2024-01-05&end=2024-01-06", manager, nil)
		assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "DIRECTORY_UNAVAILABLE", decode[ErrorResponse](t, rec).Code)
	})

	s.kpi.AssertExpectations(t)
}

func TestKPIHandler_TeamLeadScope(t *testing.T) {
	s := newTestServer(t, true)
	own, other := uuid.New(), uuid.New()
	teamLead := s.token(t, auth.RoleTeamLead, &own)

	t.Run("window is confined to the caller's team", func(t *testing.T) {
		s.kpi.On("AggregateByAgent", mock.Anything, windowMatching("2024-01-01", "2024-01-31", &own)).
			Return([]domain.AgentDailyAggregate{}, nil).Once()
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/agent-aggregates", teamLead, nil)
		assert.Equal(t, stdhttp.StatusOK, rec.Code)
	})

	t.Run("another team is forbidden", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/aggregates?teamLeadId="+other.String(), teamLead, nil)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})

	t.Run("top-bottom is cross-team and forbidden", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/top-bottom", teamLead, nil)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})

	t.Run("live snapshot is filtered", func(t *testing.T) {
		snap := domain.Snapshot{
			Version: 4,
			Aggregates: []domain.DailyAggregate{
				{TeamLeadID: own, Date: "2024-01-01"},
				{TeamLeadID: other, Date: "2024-01-01"},
			},
		}
		s.live.On("Snapshot").Return(snap, nil).Once()
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/live", teamLead, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		got := decode[domain.Snapshot](t, rec)
		require.Len(t, got.Aggregates, 1)
		assert.Equal(t, own, got.Aggregates[0].TeamLeadID)
	})

	t.Run("cannot move the live window", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodPut, "/api/v1/kpi/live/window", teamLead,
			SetWindowRequest{StartDate: "2024-02-01", EndDate: "2024-02-29"})
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})

	s.kpi.AssertExpectations(t)
}

func TestKPIHandler_SummariesAndRankings(t *testing.T) {
	s := newTestServer(t, true)
	admin := s.token(t, auth.RoleAdmin, nil)
	agent := uuid.New()

	summaries := []domain.PerformanceSummary{
		{AgentID: agent, AgentName: "Alice", EfficiencyScore: 54},
	}

	t.Run("single agent", func(t *testing.T) {
		s.kpi.On("Summarize", mock.Anything, mock.Anything, domain.SummaryScope{AgentID: &agent}).Return(summaries, nil).Once()
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/summaries?agentId="+agent.String(), admin, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		resp := decode[WindowedResponse[domain.PerformanceSummary]](t, rec)
		assert.Equal(t, 54, resp.Data[0].EfficiencyScore)
	})

	t.Run("unknown agent", func(t *testing.T) {
		missing := uuid.New()
		s.kpi.On("Summarize", mock.Anything, mock.Anything, domain.SummaryScope{AgentID: &missing}).
			Return(nil, apperrors.ErrAgentNotFound).Once()
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/summaries?agentId="+missing.String(), admin, nil)
		assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
		assert.Equal(t, "AGENT_NOT_FOUND", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("rankings pass sort and filters through", func(t *testing.T) {
		s.kpi.On("Summarize", mock.Anything, mock.Anything, domain.SummaryScope{}).Return(summaries, nil).Once()
		s.kpi.On("Rank", summaries, mock.MatchedBy(func(o domain.RankOptions) bool {
			return o.SortBy == domain.SortByName && o.SortOrder == domain.SortAsc && o.Filters.MinCalls == 2
		})).Return([]domain.RankingEntry{{PerformanceSummary: summaries[0], PerformanceRank: 1}}, nil).Once()

		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/rankings?sortBy=name&sortOrder=asc&minCalls=2", admin, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		resp := decode[WindowedResponse[domain.RankingEntry]](t, rec)
		assert.Equal(t, 1, resp.Data[0].PerformanceRank)
	})

	t.Run("bad sort key", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/rankings?sortBy=speed", admin, nil)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	})

	s.kpi.AssertExpectations(t)
}

func TestKPIHandler_TopBottom(t *testing.T) {
	s := newTestServer(t, true)
	manager := s.token(t, auth.RoleManager, nil)

	result := &domain.TopBottom{
		Top:    []domain.RankingEntry{{PerformanceRank: 1}},
		Bottom: []domain.RankingEntry{{PerformanceRank: 2}},
	}
	s.kpi.On("TopBottom", mock.Anything, 5, windowMatching("2024-01-01", "2024-01-31", nil)).Return(result, nil).Once()

	rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/top-bottom?limit=5", manager, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	resp := decode[struct {
		Limit  int                   `json:"limit"`
		Top    []domain.RankingEntry `json:"top"`
		Bottom []domain.RankingEntry `json:"bottom"`
	}](t, rec)
	assert.Equal(t, 5, resp.Limit)
	assert.Len(t, resp.Top, 1)
	assert.Len(t, resp.Bottom, 1)

	for _, limit := range []string{"0", "-3", "abc", "101"} {
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/top-bottom?limit="+limit, manager, nil)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code, "limit=%s", limit)
	}

	s.kpi.AssertExpectations(t)
}

func TestKPIHandler_LiveControl(t *testing.T) {
	s := newTestServer(t, true)
	manager := s.token(t, auth.RoleManager, nil)

	t.Run("no snapshot yet", func(t *testing.T) {
		s.live.On("Snapshot").Return(domain.Snapshot{}, apperrors.ErrNoSnapshot).Once()
		rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/live", manager, nil)
		assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "NOT_READY", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("set window", func(t *testing.T) {
		s.live.On("SetWindow", windowMatching("2024-02-01", "2024-02-29", nil)).Return(nil).Once()
		rec := s.do(t, stdhttp.MethodPut, "/api/v1/kpi/live/window", manager,
			SetWindowRequest{StartDate: "2024-02-01", EndDate: "2024-02-29"})
		assert.Equal(t, stdhttp.StatusAccepted, rec.Code)
	})

	t.Run("set window validates the body", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodPut, "/api/v1/kpi/live/window", manager, SetWindowRequest{StartDate: "2024-02-01"})
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)

		rec = s.do(t, stdhttp.MethodPut, "/api/v1/kpi/live/window", manager,
			SetWindowRequest{StartDate: "2024-03-01", EndDate: "2024-02-01"})
		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	})

	t.Run("invalidate", func(t *testing.T) {
		s.live.On("Invalidate").Return().Once()
		rec := s.do(t, stdhttp.MethodPost, "/api/v1/kpi/live/invalidate", manager, nil)
		assert.Equal(t, stdhttp.StatusAccepted, rec.Code)
	})

	t.Run("refresh is rate limited per user", func(t *testing.T) {
		s.live.On("Refresh", mock.Anything).Return(&domain.Snapshot{Version: 9}, nil).Once()
		rec := s.do(t, stdhttp.MethodPost, "/api/v1/kpi/live/refresh", manager, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		assert.Equal(t, uint64(9), decode[domain.Snapshot](t, rec).Version)

		rec = s.do(t, stdhttp.MethodPost, "/api/v1/kpi/live/refresh", manager, nil)
		assert.Equal(t, stdhttp.StatusTooManyRequests, rec.Code)
	})

	s.live.AssertExpectations(t)
}

func TestKPIHandler_WithoutLive(t *testing.T) {
	s := newTestServer(t, false)
	manager := s.token(t, auth.RoleManager, nil)

	s.kpi.On("Aggregate", mock.Anything, windowMatching("2024-02-10", "2024-03-10", nil)).Return([]domain.DailyAggregate{}, nil).Once()
	rec := s.do(t, stdhttp.MethodGet, "/api/v1/kpi/aggregates", manager, nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = s.do(t, stdhttp.MethodGet, "/api/v1/kpi/live", manager, nil)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "LIVE_DISABLED", decode[ErrorResponse](t, rec).Code)

	s.kpi.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, stdhttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = s.do(t, stdhttp.MethodGet, "/health", "", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	require.NotNil(t, resp.Live)
	assert.True(t, resp.Live.Running)

	stopped := NewHealthHandler(pingOK{}, staticStats{Running: false}, "test")
	rec = httptest.NewRecorder()
	stopped.HandleReadiness(rec, httptest.NewRequest(stdhttp.MethodGet, "/health/ready", nil))
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)

	failing := NewHealthHandler(pingOK{}, staticStats{Running: true, LastError: "boom"}, "test")
	rec = httptest.NewRecorder()
	failing.HandleHealth(rec, httptest.NewRequest(stdhttp.MethodGet, "/health", nil))
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
}
