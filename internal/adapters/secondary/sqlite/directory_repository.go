package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
)

type DirectoryRepository struct {
	db *DB
}

var _ ports.Directory = (*DirectoryRepository)(nil)

func NewDirectoryRepository(db *DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) ListAgents(ctx context.Context, teamLeadID *uuid.UUID) ([]domain.Agent, error) {
	const query = `
SELECT id, name, team_lead_id, group_name, start_date
FROM agents
WHERE ?1 IS NULL OR team_lead_id = ?1
ORDER BY name, id
`

	var lead sql.NullString
	if teamLeadID != nil {
		lead = sql.NullString{String: teamLeadID.String(), Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, query, lead)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0)
	for rows.Next() {
		var (
			id, name, leadID     string
			groupName, startDate sql.NullString
		)
		if err := rows.Scan(&id, &name, &leadID, &groupName, &startDate); err != nil {
			return nil, err
		}
		agentID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		leadUUID, err := uuid.Parse(leadID)
		if err != nil {
			return nil, fmt.Errorf("agent %q team lead: %w", name, err)
		}
		agent := domain.Agent{
			ID:         agentID,
			Name:       name,
			TeamLeadID: leadUUID,
			GroupName:  groupName.String,
		}
		if day, ok := domain.CoerceDate(startDate.String); ok {
			agent.StartDate = day
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *DirectoryRepository) ListTeamLeads(ctx context.Context) ([]domain.TeamLead, error) {
	const query = `
SELECT t.id, t.name, COUNT(a.id)
FROM team_leads t
LEFT JOIN agents a ON a.team_lead_id = t.id
GROUP BY t.id, t.name
ORDER BY t.name, t.id
`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list team leads: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.TeamLead, 0)
	for rows.Next() {
		var (
			id, name string
			count    int
		)
		if err := rows.Scan(&id, &name, &count); err != nil {
			return nil, err
		}
		leadID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("team lead %q: %w", name, err)
		}
		leads = append(leads, domain.TeamLead{ID: leadID, Name: name, AssignedAgentsCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leads, nil
}
