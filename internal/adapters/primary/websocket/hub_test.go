package websocket

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshotFor(version uint64, leads ...uuid.UUID) domain.Snapshot {
	snap := domain.Snapshot{Version: version}
	for _, lead := range leads {
		snap.Aggregates = append(snap.Aggregates, domain.DailyAggregate{TeamLeadID: lead, Date: "2024-01-01"})
		snap.TeamTotals = append(snap.TeamTotals, domain.TeamTotals{TeamLeadID: lead})
	}
	return snap
}

func receive(t *testing.T, c *Client) domain.Snapshot {
	t.Helper()
	select {
	case ev, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		require.Equal(t, domain.EventAggregatesUpdated, ev.Type)
		snap, ok := ev.Payload.(domain.Snapshot)
		require.True(t, ok)
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return domain.Snapshot{}
	}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHub_BroadcastFiltersByTeam(t *testing.T) {
	hub, _ := startHub(t)
	leadA, leadB := uuid.New(), uuid.New()

	all := NewClient(hub, nil, uuid.New(), nil, testLogger())
	scoped := NewClient(hub, nil, uuid.New(), &leadB, testLogger())
	require.True(t, hub.Attach(all))
	require.True(t, hub.Attach(scoped))
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastSnapshot(snapshotFor(1, leadA, leadB)))

	full := receive(t, all)
	assert.Equal(t, uint64(1), full.Version)
	assert.Len(t, full.Aggregates, 2)

	view := receive(t, scoped)
	require.Len(t, view.Aggregates, 1)
	assert.Equal(t, leadB, view.Aggregates[0].TeamLeadID)
	require.Len(t, view.TeamTotals, 1)

	assert.False(t, scoped.SetTeam(&leadA), "fixed team cannot be changed")
}

func TestHub_LateClientGetsLatest(t *testing.T) {
	hub, _ := startHub(t)
	lead := uuid.New()

	first := NewClient(hub, nil, uuid.New(), nil, testLogger())
	require.True(t, hub.Attach(first))
	require.NoError(t, hub.BroadcastSnapshot(snapshotFor(7, lead)))
	receive(t, first)

	late := NewClient(hub, nil, uuid.New(), nil, testLogger())
	require.True(t, hub.Attach(late))
	assert.Equal(t, uint64(7), receive(t, late).Version)

	other := uuid.New()
	require.True(t, late.SetTeam(&other))
	hub.resend(late)
	assert.Empty(t, receive(t, late).Aggregates)
}

func TestHub_QueueKeepsNewest(t *testing.T) {
	hub := NewHub(testLogger())

	for v := range uint64(5) {
		require.NoError(t, hub.BroadcastSnapshot(snapshotFor(v+1)))
	}
	queued := <-hub.broadcast
	assert.Equal(t, uint64(5), queued.Version)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	client := NewClient(hub, nil, uuid.New(), nil, testLogger())
	require.True(t, hub.Attach(client))
	require.Eventually(t, func() bool { return hub.IsUserConnected(client.UserID) }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("client was not closed")
	}

	assert.False(t, hub.Attach(NewClient(hub, nil, uuid.New(), nil, testLogger())))
	hub.Detach(client)
}

func TestClient_FullBufferIsDropped(t *testing.T) {
	hub := NewHub(testLogger())
	client := NewClient(hub, nil, uuid.New(), nil, testLogger())
	hub.registerClient(client)

	for range SendBufferSize {
		require.True(t, client.trySend(domain.Event{Type: domain.EventPong}))
	}
	hub.send(client, snapshotFor(1))
	assert.False(t, hub.IsUserConnected(client.UserID))

	// A closed client swallows further sends.
	assert.True(t, client.trySend(domain.Event{Type: domain.EventPong}))
}
