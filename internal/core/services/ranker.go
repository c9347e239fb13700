package services

import (
	"cmp"
	"slices"
	"strings"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
)

// Rank filters and orders summaries. Filters apply first, to the full set.
// The sort is stable: ties keep the incoming order, which for service
// results is directory order. Ranks are positions, 1..n.
func Rank(summaries []domain.PerformanceSummary, opts domain.RankOptions) ([]domain.RankingEntry, error) {
	if opts.SortBy == "" {
		opts.SortBy = domain.SortByEfficiency
	}
	if opts.SortOrder == "" {
		opts.SortOrder = domain.SortDesc
	}
	if !opts.SortBy.IsValid() {
		return nil, apperrors.ErrInvalidSortKey
	}
	if !opts.SortOrder.IsValid() {
		return nil, apperrors.ErrInvalidSortOrder
	}

	sorted := FilterSummaries(summaries, opts.Filters)
	compare := comparator(opts.SortBy)
	slices.SortStableFunc(sorted, func(a, b domain.PerformanceSummary) int {
		if opts.SortOrder == domain.SortDesc {
			return compare(b, a)
		}
		return compare(a, b)
	})

	entries := make([]domain.RankingEntry, len(sorted))
	for i, s := range sorted {
		entries[i] = domain.RankingEntry{PerformanceSummary: s, PerformanceRank: i + 1}
	}
	return entries, nil
}

// FilterSummaries returns a new slice with the summaries that pass every filter.
// "Top performers" keeps summaries whose efficiency is above the mean of the
// set that survived the other filters.
func FilterSummaries(summaries []domain.PerformanceSummary, f domain.RankFilters) []domain.PerformanceSummary {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.PerformanceSummary, 0, len(summaries))
	for _, s := range summaries {
		if search != "" && !strings.Contains(strings.ToLower(s.AgentName), search) {
			continue
		}
		if s.Totals.Calls < f.MinCalls ||
			s.Totals.Emails < f.MinEmails ||
			s.Totals.LiveChat < f.MinLiveChat ||
			s.EfficiencyScore < f.MinEfficiency {
			continue
		}
		out = append(out, s)
	}

	if !f.TopPerformersOnly || len(out) == 0 {
		return out
	}

	total := 0
	for _, s := range out {
		total += s.EfficiencyScore
	}
	mean := float64(total) / float64(len(out))

	top := out[:0]
	for _, s := range out {
		if float64(s.EfficiencyScore) > mean {
			top = append(top, s)
		}
	}
	return top
}

// SelectTopBottom ranks by efficiency, best first, and slices the first n as
// top and the last n, worst first, as bottom. The slices overlap when fewer
// than 2n summaries exist.
func SelectTopBottom(summaries []domain.PerformanceSummary, n int) (*domain.TopBottom, error) {
	if n < 1 {
		return nil, apperrors.ErrInvalidLimit
	}

	ranked, err := Rank(summaries, domain.DefaultRankOptions())
	if err != nil {
		return nil, err
	}

	k := min(n, len(ranked))
	top := slices.Clone(ranked[:k])
	bottom := slices.Clone(ranked[len(ranked)-k:])
	slices.Reverse(bottom)

	return &domain.TopBottom{Top: top, Bottom: bottom}, nil
}

func comparator(key domain.SortKey) func(a, b domain.PerformanceSummary) int {
	switch key {
	case domain.SortByName:
		return func(a, b domain.PerformanceSummary) int {
			return cmp.Compare(strings.ToLower(a.AgentName), strings.ToLower(b.AgentName))
		}
	case domain.SortByCalls:
		return func(a, b domain.PerformanceSummary) int {
			return cmp.Compare(a.Totals.Calls, b.Totals.Calls)
		}
	case domain.SortByEmails:
		return func(a, b domain.PerformanceSummary) int {
			return cmp.Compare(a.Totals.Emails, b.Totals.Emails)
		}
	case domain.SortBySatisfaction:
		return func(a, b domain.PerformanceSummary) int {
			return cmp.Compare(a.AvgCustomerSatisfaction, b.AvgCustomerSatisfaction)
		}
	default:
		return func(a, b domain.PerformanceSummary) int {
			return cmp.Compare(a.EfficiencyScore, b.EfficiencyScore)
		}
	}
}
