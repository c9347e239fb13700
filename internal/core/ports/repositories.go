package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
)

// ChannelSource fetches raw rows from one source table, filtered to the
// inclusive date range and, when set, to a single team lead.
type ChannelSource interface {
	FetchRows(ctx context.Context, table domain.SourceTable, q domain.RecordQuery) ([]domain.RawRow, error)
}

// Directory looks up agents and team leads.
type Directory interface {
	ListAgents(ctx context.Context, teamLeadID *uuid.UUID) ([]domain.Agent, error)
	ListTeamLeads(ctx context.Context) ([]domain.TeamLead, error)
}

// ChangeFeed delivers table change notifications. Reconnecting after a
// transport failure is the feed's job.
type ChangeFeed interface {
	Subscribe(table string, onChange func(domain.ChangeEvent)) (unsubscribe func(), err error)
}

// SnapshotBroadcaster pushes published snapshots to connected views.
type SnapshotBroadcaster interface {
	BroadcastSnapshot(snapshot domain.Snapshot) error
}
