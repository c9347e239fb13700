package http

import (
	"context"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wsAdapter "github.com/lorrc/team-kpi-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/team-kpi-backend/internal/auth"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/mocks"
)

func TestWebSocketHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm := auth.NewTokenManager("test-secret", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := wsAdapter.NewHub(logger)
	go hub.Run(ctx)

	router := NewRouter(RouterConfig{
		TokenManager: tm,
		KPI:          NewKPIHandler(mocks.NewMockKPIService(), nil, 30, NewErrorHandler(logger), logger),
		Health:       NewHealthHandler(pingOK{}, nil, "test"),
		WebSocket: NewWebSocketHandler(hub, tm, WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			IsDevelopment:   true,
		}, logger),
		Logger: logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	t.Run("rejects a missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=garbage", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("team lead receives its own team", func(t *testing.T) {
		own, other := uuid.New(), uuid.New()
		require.NoError(t, hub.BroadcastSnapshot(domain.Snapshot{
			Version: 1,
			Aggregates: []domain.DailyAggregate{
				{TeamLeadID: own, Date: "2024-01-01"},
				{TeamLeadID: other, Date: "2024-01-01"},
			},
		}))

		token, err := tm.GenerateToken(uuid.New(), auth.RoleTeamLead, &own)
		require.NoError(t, err)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var event struct {
			Type    domain.EventType `json:"type"`
			Payload domain.Snapshot  `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&event))

		assert.Equal(t, domain.EventAggregatesUpdated, event.Type)
		require.Len(t, event.Payload.Aggregates, 1)
		assert.Equal(t, own, event.Payload.Aggregates[0].TeamLeadID)
	})
}
