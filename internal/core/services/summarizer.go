package services

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
)

// Summarizer derives per-agent performance summaries from daily aggregates.
type Summarizer struct{}

// NewSummarizer creates a summarizer.
func NewSummarizer() *Summarizer {
	return &Summarizer{}
}

// Summarize returns one summary per agent, in the order the agents are given.
// Agents without any daily aggregate still get a zero-filled summary.
func (s *Summarizer) Summarize(agents []domain.Agent, daily []domain.AgentDailyAggregate) []domain.PerformanceSummary {
	byAgent := make(map[uuid.UUID][]domain.AgentDailyAggregate, len(agents))
	for _, d := range daily {
		byAgent[d.AgentID] = append(byAgent[d.AgentID], d)
	}

	out := make([]domain.PerformanceSummary, 0, len(agents))
	for _, agent := range agents {
		out = append(out, summarizeAgent(agent, byAgent[agent.ID]))
	}
	return out
}

func summarizeAgent(agent domain.Agent, days []domain.AgentDailyAggregate) domain.PerformanceSummary {
	summary := domain.PerformanceSummary{
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		TeamLeadID: agent.TeamLeadID,
		GroupName:  agent.GroupName,
		Trend:      domain.TrendStable,
	}
	if len(days) == 0 {
		return summary
	}

	days = slices.Clone(days)
	slices.SortStableFunc(days, func(x, y domain.AgentDailyAggregate) int {
		return strings.Compare(x.Date, y.Date)
	})

	var satSum float64
	activity := make([]int, 0, len(days))
	for _, d := range days {
		summary.Totals.Merge(d.ChannelCounts)
		if d.TicketsResolved > 0 {
			summary.TicketsResolved += d.TicketsResolved
		}
		if d.HasSatisfaction {
			satSum += domain.Clamp(d.CustomerSatisfaction, 0, domain.MaxSatisfaction)
		}
		activity = append(activity, max(d.Calls, 0)+max(d.Emails, 0))
	}

	summary.DaysActive = len(days)
	summary.AvgCustomerSatisfaction = domain.Clamp(satSum/float64(summary.DaysActive), 0, domain.MaxSatisfaction)
	summary.EfficiencyScore = domain.EfficiencyScore(
		summary.TicketsResolved,
		summary.Totals.Handled(),
		summary.AvgCustomerSatisfaction,
	)
	summary.Trend = domain.ClassifyTrend(activity)
	return summary
}
