package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of real-time event.
type EventType string

const (
	EventAggregatesUpdated EventType = "AGGREGATES_UPDATED"
	EventPong              EventType = "PONG"
)

// Event is the payload sent over WebSocket.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ChangeEvent is one notification from the change feed.
type ChangeEvent struct {
	Table      string    `json:"table"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Snapshot is the unit the live layer publishes. Collections are replaced
// wholesale; a published snapshot is never modified.
type Snapshot struct {
	Version         uint64                `json:"version"`
	Window          AggregationWindow     `json:"window"`
	Aggregates      []DailyAggregate      `json:"aggregates"`
	AgentAggregates []AgentDailyAggregate `json:"agentAggregates"`
	TeamTotals      []TeamTotals          `json:"teamTotals"`
	Summaries       []PerformanceSummary  `json:"summaries"`
	Failures        []SourceFailure       `json:"failures,omitempty"`
	Collisions      []NameCollision       `json:"collisions,omitempty"`
	ComputedAt      time.Time             `json:"computedAt"`
	PublishedAt     time.Time             `json:"publishedAt"`
}

// Clone returns a copy whose slices do not alias the receiver's.
func (s Snapshot) Clone() Snapshot {
	s.Aggregates = slices.Clone(s.Aggregates)
	s.AgentAggregates = slices.Clone(s.AgentAggregates)
	s.TeamTotals = slices.Clone(s.TeamTotals)
	s.Summaries = slices.Clone(s.Summaries)
	s.Failures = slices.Clone(s.Failures)
	s.Collisions = slices.Clone(s.Collisions)
	if s.Window.TeamLeadID != nil {
		id := *s.Window.TeamLeadID
		s.Window.TeamLeadID = &id
	}
	return s
}

// Partial reports whether any source failed while computing the snapshot.
func (s Snapshot) Partial() bool {
	return len(s.Failures) > 0
}

// ForTeam returns a copy holding only the rows of one team lead. Collisions
// are kept only when one of the team's agents is involved.
func (s Snapshot) ForTeam(teamLeadID uuid.UUID) Snapshot {
	out := s.Clone()
	out.Aggregates = filterTeam(s.Aggregates, func(a DailyAggregate) uuid.UUID { return a.TeamLeadID }, teamLeadID)
	out.AgentAggregates = filterTeam(s.AgentAggregates, func(a AgentDailyAggregate) uuid.UUID { return a.TeamLeadID }, teamLeadID)
	out.TeamTotals = filterTeam(s.TeamTotals, func(t TeamTotals) uuid.UUID { return t.TeamLeadID }, teamLeadID)
	out.Summaries = filterTeam(s.Summaries, func(p PerformanceSummary) uuid.UUID { return p.TeamLeadID }, teamLeadID)
	out.Collisions = slices.DeleteFunc(out.Collisions, func(c NameCollision) bool { return !c.Involves(teamLeadID) })
	return out
}

func filterTeam[T any](rows []T, lead func(T) uuid.UUID, teamLeadID uuid.UUID) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if lead(r) == teamLeadID {
			out = append(out, r)
		}
	}
	return out
}
