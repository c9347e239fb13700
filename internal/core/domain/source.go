package domain

// SourceKind classifies what a source table contributes to a pass.
type SourceKind string

const (
	SourceKindChannel     SourceKind = "channel"
	SourceKindSLA         SourceKind = "sla"
	SourceKindPerformance SourceKind = "performance"
)

// Directory table names. Changes to these re-trigger aggregation as well.
const (
	TableAgents    = "agents"
	TableTeamLeads = "team_leads"
)

// SourceTable describes where one source keeps its columns. Each table was
// modelled independently, so the same concept lives under different names.
type SourceTable struct {
	Name    string
	Kind    SourceKind
	Channel Channel

	TeamLeadColumn string
	AgentColumn    string
	DateColumn     string

	// CountColumn holds the channel count for channel sources.
	CountColumn string
	// PercentageColumn holds the SLA percentage for SLA sources.
	PercentageColumn string
	// ResolvedColumn and SatisfactionColumn belong to performance sources.
	ResolvedColumn     string
	SatisfactionColumn string
}

// Columns returns every column the collector reads from the table.
func (s SourceTable) Columns() []string {
	cols := []string{s.TeamLeadColumn}
	for _, c := range []string{
		s.AgentColumn, s.DateColumn, s.CountColumn,
		s.PercentageColumn, s.ResolvedColumn, s.SatisfactionColumn,
	} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// SourceTables is the registry of every table feeding the collector.
var SourceTables = []SourceTable{
	{
		Name: "calls", Kind: SourceKindChannel, Channel: ChannelCalls,
		TeamLeadColumn: "team_lead_id", AgentColumn: "agent_name",
		DateColumn: "call_date", CountColumn: "call_count",
	},
	{
		Name: "emails", Kind: SourceKindChannel, Channel: ChannelEmails,
		TeamLeadColumn: "team_lead_id", AgentColumn: "agent_name",
		DateColumn: "date", CountColumn: "amount",
	},
	{
		Name: "live_chat", Kind: SourceKindChannel, Channel: ChannelLiveChat,
		TeamLeadColumn: "team_lead_id", AgentColumn: "agent_name",
		DateColumn: "chat_date", CountColumn: "chats",
	},
	{
		Name: "escalations", Kind: SourceKindChannel, Channel: ChannelEscalations,
		TeamLeadColumn: "team_lead_id", AgentColumn: "agent_name",
		DateColumn: "date", CountColumn: "escalation_count",
	},
	{
		Name: "qa_assessments", Kind: SourceKindChannel, Channel: ChannelQAAssessments,
		TeamLeadColumn: "team_lead_id", AgentColumn: "agent_name",
		DateColumn: "assessment_date", CountColumn: "assessments",
	},
	{
		Name: "survey_tickets", Kind: SourceKindChannel, Channel: ChannelSurveyTickets,
		TeamLeadColumn: "team_lead_id", AgentColumn: "agent_name",
		DateColumn: "date", CountColumn: "ticket_count",
	},
	{
		Name: "daily_sla", Kind: SourceKindSLA,
		TeamLeadColumn: "team_lead_id",
		DateColumn:     "report_date", PercentageColumn: "sla_percentage",
	},
	{
		Name: "agent_performance", Kind: SourceKindPerformance,
		TeamLeadColumn: "team_lead_id", AgentColumn: "agent_name",
		DateColumn: "date", ResolvedColumn: "tickets_resolved",
		SatisfactionColumn: "customer_satisfaction",
	},
}

// LookupSource finds a registered source table by name.
func LookupSource(name string) (SourceTable, bool) {
	for _, s := range SourceTables {
		if s.Name == name {
			return s, true
		}
	}
	return SourceTable{}, false
}

// WatchedTables lists every table whose changes invalidate published aggregates.
func WatchedTables() []string {
	tables := make([]string, 0, len(SourceTables)+2)
	for _, s := range SourceTables {
		tables = append(tables, s.Name)
	}
	return append(tables, TableAgents, TableTeamLeads)
}
