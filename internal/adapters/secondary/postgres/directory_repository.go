package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"github.com/lorrc/team-kpi-backend/internal/core/utils"
)

type DirectoryRepository struct {
	pool *pgxpool.Pool
}

var _ ports.Directory = (*DirectoryRepository)(nil)

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) ListAgents(ctx context.Context, teamLeadID *uuid.UUID) ([]domain.Agent, error) {
	const query = `
SELECT id, name, team_lead_id, group_name, start_date
FROM agents
WHERE $1::uuid IS NULL OR team_lead_id = $1
ORDER BY name, id
`

	rows, err := r.pool.Query(ctx, query, utils.ToNullUUID(teamLeadID))
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0)
	for rows.Next() {
		var (
			id        pgtype.UUID
			name      string
			leadID    pgtype.UUID
			groupName pgtype.Text
			startDate pgtype.Date
		)
		if err := rows.Scan(&id, &name, &leadID, &groupName, &startDate); err != nil {
			return nil, err
		}
		agents = append(agents, domain.Agent{
			ID:         utils.FromUUID(id),
			Name:       name,
			TeamLeadID: utils.FromUUID(leadID),
			GroupName:  utils.FromString(groupName),
			StartDate:  utils.FromDate(startDate),
		})
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

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list team leads: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.TeamLead, 0)
	for rows.Next() {
		var (
			id    pgtype.UUID
			name  string
			count int64
		)
		if err := rows.Scan(&id, &name, &count); err != nil {
			return nil, err
		}
		leads = append(leads, domain.TeamLead{
			ID:                  utils.FromUUID(id),
			Name:                name,
			AssignedAgentsCount: int(count),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leads, nil
}
