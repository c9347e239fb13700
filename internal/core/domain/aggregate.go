package domain

import (
	"github.com/google/uuid"
)

// DailyAggregate is one row of summed channel counts for a team lead on a day.
// Rows are rebuilt on every pass and never patched.
type DailyAggregate struct {
	TeamLeadID uuid.UUID `json:"teamLeadId"`
	Date       string    `json:"date"`
	ChannelCounts
	// SLAPercentage is the mean of the day's reports, or 0 when none arrived.
	// TeamTotals.SLAPercentage averages over reporting days only.
	SLAPercentage float64 `json:"slaPercentage"`
}

// AgentDailyAggregate is the per-agent counterpart used by the summarizer.
type AgentDailyAggregate struct {
	AgentID    uuid.UUID `json:"agentId"`
	AgentName  string    `json:"agentName"`
	TeamLeadID uuid.UUID `json:"teamLeadId"`
	Date       string    `json:"date"`
	ChannelCounts
	TicketsResolved      int     `json:"ticketsResolved"`
	CustomerSatisfaction float64 `json:"customerSatisfaction"`
	HasSatisfaction      bool    `json:"hasSatisfaction"`
}

// TeamTotals summarizes one team lead over the whole window.
type TeamTotals struct {
	TeamLeadID uuid.UUID `json:"teamLeadId"`
	ChannelCounts
	SLAPercentage float64 `json:"slaPercentage"`
	SLADays       int     `json:"slaDays"`
	DaysWithData  int     `json:"daysWithData"`
}
