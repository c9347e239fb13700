package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Agent is a directory entry owned by the directory collaborator.
type Agent struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	TeamLeadID uuid.UUID `json:"teamLeadId"`
	GroupName  string    `json:"groupName,omitempty"`
	StartDate  string    `json:"startDate,omitempty"`
}

// TeamLead is a directory entry owned by the directory collaborator.
type TeamLead struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	AssignedAgentsCount int       `json:"assignedAgentsCount"`
}

// NameCollision records a name shared by more than one agent.
type NameCollision struct {
	Name     string      `json:"name"`
	Winner   uuid.UUID   `json:"winner"`
	Shadowed []uuid.UUID `json:"shadowed"`
	// Teams holds the team leads of every agent involved.
	Teams []uuid.UUID `json:"-"`
}

// Involves reports whether any agent in the collision belongs to the team.
func (c NameCollision) Involves(teamLeadID uuid.UUID) bool {
	return slices.Contains(c.Teams, teamLeadID)
}

// Roster reconciles agent names found in source rows against the directory.
//
// Matching is case-sensitive and exact. When several agents share a name the
// first one in directory order wins; the others are recorded as collisions and
// never receive records by name.
type Roster struct {
	agents     []Agent
	leads      []TeamLead
	byName     map[string]int
	agentIndex map[uuid.UUID]int
	leadIndex  map[uuid.UUID]int
	collisions []NameCollision
}

// NewRoster indexes a directory snapshot. Input order is preserved.
func NewRoster(agents []Agent, leads []TeamLead) *Roster {
	r := &Roster{
		agents:     agents,
		leads:      leads,
		byName:     make(map[string]int, len(agents)),
		agentIndex: make(map[uuid.UUID]int, len(agents)),
		leadIndex:  make(map[uuid.UUID]int, len(leads)),
	}

	collisionAt := make(map[string]int)
	for i, a := range agents {
		if _, dup := r.agentIndex[a.ID]; !dup {
			r.agentIndex[a.ID] = i
		}
		winner, taken := r.byName[a.Name]
		if !taken {
			r.byName[a.Name] = i
			continue
		}
		idx, seen := collisionAt[a.Name]
		if !seen {
			r.collisions = append(r.collisions, NameCollision{
				Name:   a.Name,
				Winner: agents[winner].ID,
				Teams:  []uuid.UUID{agents[winner].TeamLeadID},
			})
			idx = len(r.collisions) - 1
			collisionAt[a.Name] = idx
		}
		c := &r.collisions[idx]
		c.Shadowed = append(c.Shadowed, a.ID)
		if !slices.Contains(c.Teams, a.TeamLeadID) {
			c.Teams = append(c.Teams, a.TeamLeadID)
		}
	}

	for i, l := range leads {
		if _, dup := r.leadIndex[l.ID]; !dup {
			r.leadIndex[l.ID] = i
		}
	}
	return r
}

// Resolve finds the agent a source row's name refers to.
func (r *Roster) Resolve(name string) (Agent, bool) {
	if name == "" {
		return Agent{}, false
	}
	i, ok := r.byName[name]
	if !ok {
		return Agent{}, false
	}
	return r.agents[i], true
}

// Agents returns the directory agents in fetch order.
func (r *Roster) Agents() []Agent {
	return r.agents
}

// TeamLeads returns the directory team leads in fetch order.
func (r *Roster) TeamLeads() []TeamLead {
	return r.leads
}

// Agent looks up an agent by id.
func (r *Roster) Agent(id uuid.UUID) (Agent, bool) {
	i, ok := r.agentIndex[id]
	if !ok {
		return Agent{}, false
	}
	return r.agents[i], true
}

// AgentOrder returns the directory position of an agent, or -1 when unknown.
func (r *Roster) AgentOrder(id uuid.UUID) int {
	if i, ok := r.agentIndex[id]; ok {
		return i
	}
	return -1
}

// LeadOrder returns the directory position of a team lead, or -1 when unknown.
func (r *Roster) LeadOrder(id uuid.UUID) int {
	if i, ok := r.leadIndex[id]; ok {
		return i
	}
	return -1
}

// HasTeamLead reports whether the team lead exists in the directory.
func (r *Roster) HasTeamLead(id uuid.UUID) bool {
	_, ok := r.leadIndex[id]
	return ok
}

// Collisions lists names shared by several agents.
func (r *Roster) Collisions() []NameCollision {
	return r.collisions
}
