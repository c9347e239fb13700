package domain

import (
	"math"

	"github.com/google/uuid"
)

// Trend classifies recent activity against the earlier part of the window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Trend and score constants.
const (
	TrendRecentDays    = 7
	TrendUpFactor      = 1.10
	TrendDownFactor    = 0.90
	MaxSatisfaction    = 5.0
	MaxEfficiencyScore = 100
	efficiencyFactor   = 20.0
)

// PerformanceSummary is an agent's derived performance over a window.
type PerformanceSummary struct {
	AgentID    uuid.UUID     `json:"agentId"`
	AgentName  string        `json:"agentName"`
	TeamLeadID uuid.UUID     `json:"teamLeadId"`
	GroupName  string        `json:"groupName,omitempty"`
	Totals     ChannelCounts `json:"totals"`

	TicketsResolved         int     `json:"ticketsResolved"`
	AvgCustomerSatisfaction float64 `json:"avgCustomerSatisfaction"`
	EfficiencyScore         int     `json:"efficiencyScore"`
	DaysActive              int     `json:"daysActive"`
	Trend                   Trend   `json:"trend"`
}

// RankingEntry is a summary with its 1-based position in a ranking.
type RankingEntry struct {
	PerformanceSummary
	PerformanceRank int `json:"performanceRank"`
}

// SortKey selects the summary field a ranking orders by.
type SortKey string

const (
	SortByName         SortKey = "name"
	SortByCalls        SortKey = "calls"
	SortByEmails       SortKey = "emails"
	SortByEfficiency   SortKey = "efficiency"
	SortBySatisfaction SortKey = "satisfaction"
)

// IsValid checks if the sort key is supported.
func (k SortKey) IsValid() bool {
	switch k {
	case SortByName, SortByCalls, SortByEmails, SortByEfficiency, SortBySatisfaction:
		return true
	}
	return false
}

// SortOrder is the ranking direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// IsValid checks if the sort order is supported.
func (o SortOrder) IsValid() bool {
	return o == SortAsc || o == SortDesc
}

// RankFilters narrows the summary set before sorting. Zero values disable a filter.
type RankFilters struct {
	Search            string
	MinCalls          int
	MinEmails         int
	MinLiveChat       int
	MinEfficiency     int
	TopPerformersOnly bool
}

// RankOptions configures a ranking.
type RankOptions struct {
	SortBy    SortKey
	SortOrder SortOrder
	Filters   RankFilters
}

// DefaultRankOptions ranks by efficiency, best first.
func DefaultRankOptions() RankOptions {
	return RankOptions{SortBy: SortByEfficiency, SortOrder: SortDesc}
}

// TopBottom holds the best and worst performers of a cross-team ranking.
// The two lists overlap when fewer than 2N agents exist.
type TopBottom struct {
	Top    []RankingEntry `json:"top"`
	Bottom []RankingEntry `json:"bottom"`
}

// SummaryScope narrows summarize to a team and/or a single agent.
type SummaryScope struct {
	TeamLeadID *uuid.UUID
	AgentID    *uuid.UUID
}

// EfficiencyScore combines resolution ratio and satisfaction into a 0-100 score.
func EfficiencyScore(ticketsResolved, handled int, avgSatisfaction float64) int {
	if handled <= 0 {
		return 0
	}
	ratio := Clamp(float64(ticketsResolved)/float64(handled), 0, 1)
	sat := Clamp(avgSatisfaction, 0, MaxSatisfaction)
	score := int(math.Round(ratio * sat * efficiencyFactor))
	return int(Clamp(float64(score), 0, MaxEfficiencyScore))
}

// ClassifyTrend compares the mean of the recent values against the older ones.
// values must be in ascending day order.
func ClassifyTrend(values []int) Trend {
	if len(values) <= TrendRecentDays {
		return TrendStable
	}
	split := len(values) - TrendRecentDays
	older := mean(values[:split])
	recent := mean(values[split:])

	switch {
	case recent > older*TrendUpFactor:
		return TrendUp
	case recent < older*TrendDownFactor:
		return TrendDown
	default:
		return TrendStable
	}
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
