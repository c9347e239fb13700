package services

import (
	"cmp"
	"slices"

	"github.com/google/uuid"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
)

type leadDay struct {
	lead uuid.UUID
	date string
}

type agentDay struct {
	agent uuid.UUID
	date  string
}

// Aggregator reduces normalized records into daily aggregates. It is stateless.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate builds one DailyAggregate per (team lead, date) for every calendar
// day of the window. Survey tickets are a window total per team lead, repeated
// on each of that lead's rows. SLA is averaged over the reports of the day only.
func (a *Aggregator) Aggregate(window domain.AggregationWindow, col *domain.Collection, roster *domain.Roster) []domain.DailyAggregate {
	counts := make(map[leadDay]*domain.ChannelCounts)
	survey := make(map[uuid.UUID]int)
	slaSum := make(map[leadDay]float64)
	slaReports := make(map[leadDay]int)
	leads := make(map[uuid.UUID]struct{})

	for _, rec := range col.Interactions {
		if !window.Contains(rec.Date) || !window.InScope(rec.TeamLeadID) {
			continue
		}
		leads[rec.TeamLeadID] = struct{}{}

		if rec.Channel == domain.ChannelSurveyTickets {
			if rec.Count > 0 {
				survey[rec.TeamLeadID] += rec.Count
			}
			continue
		}

		k := leadDay{lead: rec.TeamLeadID, date: rec.Date}
		c, ok := counts[k]
		if !ok {
			c = &domain.ChannelCounts{}
			counts[k] = c
		}
		c.Add(rec.Channel, rec.Count)
	}

	for _, sla := range col.SLA {
		if !window.Contains(sla.Date) || !window.InScope(sla.TeamLeadID) {
			continue
		}
		leads[sla.TeamLeadID] = struct{}{}
		k := leadDay{lead: sla.TeamLeadID, date: sla.Date}
		slaSum[k] += sla.Percentage
		slaReports[k]++
	}

	for _, perf := range col.Performance {
		if window.Contains(perf.Date) && window.InScope(perf.TeamLeadID) {
			leads[perf.TeamLeadID] = struct{}{}
		}
	}

	if window.TeamLeadID != nil {
		leads[*window.TeamLeadID] = struct{}{}
	}

	dates := window.Dates()
	ordered := orderLeads(leads, roster)
	out := make([]domain.DailyAggregate, 0, len(ordered)*len(dates))
	for _, lead := range ordered {
		for _, date := range dates {
			k := leadDay{lead: lead, date: date}
			row := domain.DailyAggregate{TeamLeadID: lead, Date: date}
			if c, ok := counts[k]; ok {
				row.ChannelCounts = *c
			}
			row.SurveyTickets = survey[lead]
			if n := slaReports[k]; n > 0 {
				row.SLAPercentage = domain.Clamp(slaSum[k]/float64(n), 0, 100)
			}
			out = append(out, row)
		}
	}
	return out
}

// TeamTotals sums each team lead's channels over the window. The SLA figure is
// the mean of the daily SLA values over the days that reported one.
func (a *Aggregator) TeamTotals(window domain.AggregationWindow, col *domain.Collection, roster *domain.Roster) []domain.TeamTotals {
	totals := make(map[uuid.UUID]*domain.TeamTotals)
	get := func(lead uuid.UUID) *domain.TeamTotals {
		t, ok := totals[lead]
		if !ok {
			t = &domain.TeamTotals{TeamLeadID: lead}
			totals[lead] = t
		}
		return t
	}

	activeDays := make(map[leadDay]struct{})
	for _, rec := range col.Interactions {
		if !window.Contains(rec.Date) || !window.InScope(rec.TeamLeadID) {
			continue
		}
		get(rec.TeamLeadID).Add(rec.Channel, rec.Count)
		activeDays[leadDay{lead: rec.TeamLeadID, date: rec.Date}] = struct{}{}
	}
	for k := range activeDays {
		totals[k.lead].DaysWithData++
	}

	daySum := make(map[leadDay]float64)
	dayReports := make(map[leadDay]int)
	for _, sla := range col.SLA {
		if !window.Contains(sla.Date) || !window.InScope(sla.TeamLeadID) {
			continue
		}
		k := leadDay{lead: sla.TeamLeadID, date: sla.Date}
		daySum[k] += sla.Percentage
		dayReports[k]++
	}

	// Sum in a fixed order so repeated passes produce identical floats.
	reported := make([]leadDay, 0, len(dayReports))
	for k := range dayReports {
		reported = append(reported, k)
	}
	slices.SortFunc(reported, func(x, y leadDay) int {
		if c := cmp.Compare(x.lead.String(), y.lead.String()); c != 0 {
			return c
		}
		return cmp.Compare(x.date, y.date)
	})

	slaTotal := make(map[uuid.UUID]float64)
	for _, k := range reported {
		slaTotal[k.lead] += daySum[k] / float64(dayReports[k])
		get(k.lead).SLADays++
	}

	if window.TeamLeadID != nil {
		get(*window.TeamLeadID)
	}

	leads := make(map[uuid.UUID]struct{}, len(totals))
	for lead := range totals {
		leads[lead] = struct{}{}
	}

	out := make([]domain.TeamTotals, 0, len(totals))
	for _, lead := range orderLeads(leads, roster) {
		t := totals[lead]
		if t.SLADays > 0 {
			t.SLAPercentage = domain.Clamp(slaTotal[lead]/float64(t.SLADays), 0, 100)
		}
		out = append(out, *t)
	}
	return out
}

// AggregateByAgent builds one AgentDailyAggregate per (agent, date) that has at
// least one record. Survey tickets stay on the day they were reported so that
// summing the rows yields the window total.
func (a *Aggregator) AggregateByAgent(window domain.AggregationWindow, col *domain.Collection, roster *domain.Roster) []domain.AgentDailyAggregate {
	rows := make(map[agentDay]*domain.AgentDailyAggregate)
	satSum := make(map[agentDay]float64)
	satReports := make(map[agentDay]int)

	get := func(agentID uuid.UUID, name string, lead uuid.UUID, date string) *domain.AgentDailyAggregate {
		k := agentDay{agent: agentID, date: date}
		row, ok := rows[k]
		if !ok {
			row = &domain.AgentDailyAggregate{AgentID: agentID, AgentName: name, TeamLeadID: lead, Date: date}
			if agent, known := roster.Agent(agentID); known {
				row.AgentName = agent.Name
				row.TeamLeadID = agent.TeamLeadID
			}
			rows[k] = row
		}
		return row
	}

	for _, rec := range col.Interactions {
		if rec.AgentID == nil || !window.Contains(rec.Date) || !window.InScope(rec.TeamLeadID) {
			continue
		}
		get(*rec.AgentID, rec.AgentName, rec.TeamLeadID, rec.Date).Add(rec.Channel, rec.Count)
	}

	for _, perf := range col.Performance {
		if perf.AgentID == nil || !window.Contains(perf.Date) || !window.InScope(perf.TeamLeadID) {
			continue
		}
		row := get(*perf.AgentID, perf.AgentName, perf.TeamLeadID, perf.Date)
		row.TicketsResolved += perf.TicketsResolved
		if perf.HasSatisfaction {
			k := agentDay{agent: *perf.AgentID, date: perf.Date}
			satSum[k] += perf.CustomerSatisfaction
			satReports[k]++
		}
	}

	out := make([]domain.AgentDailyAggregate, 0, len(rows))
	for k, row := range rows {
		if n := satReports[k]; n > 0 {
			row.CustomerSatisfaction = domain.Clamp(satSum[k]/float64(n), 0, domain.MaxSatisfaction)
			row.HasSatisfaction = true
		}
		out = append(out, *row)
	}

	slices.SortFunc(out, func(x, y domain.AgentDailyAggregate) int {
		if c := compareOrder(roster.AgentOrder(x.AgentID), roster.AgentOrder(y.AgentID)); c != 0 {
			return c
		}
		if c := cmp.Compare(x.AgentID.String(), y.AgentID.String()); c != 0 {
			return c
		}
		return cmp.Compare(x.Date, y.Date)
	})
	return out
}

// orderLeads sorts team leads by directory position. Leads missing from the
// directory come last, ordered by id.
func orderLeads(leads map[uuid.UUID]struct{}, roster *domain.Roster) []uuid.UUID {
	ordered := make([]uuid.UUID, 0, len(leads))
	for lead := range leads {
		ordered = append(ordered, lead)
	}
	slices.SortFunc(ordered, func(x, y uuid.UUID) int {
		if c := compareOrder(roster.LeadOrder(x), roster.LeadOrder(y)); c != 0 {
			return c
		}
		return cmp.Compare(x.String(), y.String())
	})
	return ordered
}

// compareOrder compares directory positions, treating -1 (unknown) as last.
func compareOrder(a, b int) int {
	switch {
	case a == b:
		return 0
	case a < 0:
		return 1
	case b < 0:
		return -1
	default:
		return cmp.Compare(a, b)
	}
}
