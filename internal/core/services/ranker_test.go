package services_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary(name string, calls, emails, efficiency int, sat float64) domain.PerformanceSummary {
	s := domain.PerformanceSummary{
		AgentID:                 uuid.New(),
		AgentName:               name,
		EfficiencyScore:         efficiency,
		AvgCustomerSatisfaction: sat,
		Trend:                   domain.TrendStable,
	}
	s.Totals.Calls = calls
	s.Totals.Emails = emails
	return s
}

func names(entries []domain.RankingEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.AgentName
	}
	return out
}

func TestRank(t *testing.T) {
	summaries := []domain.PerformanceSummary{
		summary("dave", 10, 5, 40, 3.0),
		summary("Alice", 30, 2, 80, 4.5),
		summary("bob", 20, 9, 40, 4.0),
		summary("Carol", 5, 12, 60, 4.8),
	}

	t.Run("defaults to efficiency descending with positional ranks", func(t *testing.T) {
		got, err := services.Rank(summaries, domain.RankOptions{})

		require.NoError(t, err)
		assert.Equal(t, []string{"Alice", "Carol", "dave", "bob"}, names(got))
		for i, e := range got {
			assert.Equal(t, i+1, e.PerformanceRank)
		}
	})

	t.Run("ties keep the incoming order in both directions", func(t *testing.T) {
		desc, err := services.Rank(summaries, domain.RankOptions{SortBy: domain.SortByEfficiency, SortOrder: domain.SortDesc})
		require.NoError(t, err)
		asc, err := services.Rank(summaries, domain.RankOptions{SortBy: domain.SortByEfficiency, SortOrder: domain.SortAsc})
		require.NoError(t, err)

		assert.Equal(t, []string{"dave", "bob"}, names(desc)[2:])
		assert.Equal(t, []string{"dave", "bob"}, names(asc)[:2])
	})

	t.Run("name sort ignores case", func(t *testing.T) {
		got, err := services.Rank(summaries, domain.RankOptions{SortBy: domain.SortByName, SortOrder: domain.SortAsc})

		require.NoError(t, err)
		assert.Equal(t, []string{"Alice", "bob", "Carol", "dave"}, names(got))
	})

	t.Run("other keys", func(t *testing.T) {
		byCalls, err := services.Rank(summaries, domain.RankOptions{SortBy: domain.SortByCalls, SortOrder: domain.SortDesc})
		require.NoError(t, err)
		assert.Equal(t, "Alice", byCalls[0].AgentName)

		byEmails, err := services.Rank(summaries, domain.RankOptions{SortBy: domain.SortByEmails, SortOrder: domain.SortAsc})
		require.NoError(t, err)
		assert.Equal(t, "Alice", byEmails[0].AgentName)

		bySat, err := services.Rank(summaries, domain.RankOptions{SortBy: domain.SortBySatisfaction, SortOrder: domain.SortDesc})
		require.NoError(t, err)
		assert.Equal(t, "Carol", bySat[0].AgentName)
	})

	t.Run("rejects unknown key and order", func(t *testing.T) {
		_, err := services.Rank(summaries, domain.RankOptions{SortBy: "rank"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidSortKey)

		_, err = services.Rank(summaries, domain.RankOptions{SortOrder: "sideways"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidSortOrder)
	})

	t.Run("does not reorder the input", func(t *testing.T) {
		before := names(toEntries(summaries))
		_, err := services.Rank(summaries, domain.RankOptions{SortBy: domain.SortByName})
		require.NoError(t, err)
		assert.Equal(t, before, names(toEntries(summaries)))
	})

	t.Run("is deterministic", func(t *testing.T) {
		first, err := services.Rank(summaries, domain.DefaultRankOptions())
		require.NoError(t, err)
		second, err := services.Rank(summaries, domain.DefaultRankOptions())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func toEntries(summaries []domain.PerformanceSummary) []domain.RankingEntry {
	out := make([]domain.RankingEntry, len(summaries))
	for i, s := range summaries {
		out[i] = domain.RankingEntry{PerformanceSummary: s}
	}
	return out
}

func TestFilterSummaries(t *testing.T) {
	summaries := []domain.PerformanceSummary{
		summary("Alice Smith", 30, 2, 80, 4.5),
		summary("Bob Smithers", 20, 9, 40, 4.0),
		summary("Carol Jones", 5, 12, 60, 4.8),
		summary("Dan Brown", 0, 0, 0, 0),
	}

	t.Run("search is a case-insensitive substring", func(t *testing.T) {
		got := services.FilterSummaries(summaries, domain.RankFilters{Search: "SMITH"})
		assert.Len(t, got, 2)
	})

	t.Run("channel and efficiency minimums", func(t *testing.T) {
		got := services.FilterSummaries(summaries, domain.RankFilters{MinCalls: 10, MinEmails: 5})
		require.Len(t, got, 1)
		assert.Equal(t, "Bob Smithers", got[0].AgentName)

		got = services.FilterSummaries(summaries, domain.RankFilters{MinEfficiency: 60})
		assert.Len(t, got, 2)
	})

	t.Run("top performers are strictly above the filtered mean", func(t *testing.T) {
		// mean of 80, 40, 60, 0 is 45
		got := services.FilterSummaries(summaries, domain.RankFilters{TopPerformersOnly: true})
		require.Len(t, got, 2)
		assert.Equal(t, "Alice Smith", got[0].AgentName)
		assert.Equal(t, "Carol Jones", got[1].AgentName)

		// mean of 80 and 40 is 60
		got = services.FilterSummaries(summaries, domain.RankFilters{Search: "smith", TopPerformersOnly: true})
		require.Len(t, got, 1)
		assert.Equal(t, "Alice Smith", got[0].AgentName)
	})

	t.Run("no filters keeps everything", func(t *testing.T) {
		assert.Len(t, services.FilterSummaries(summaries, domain.RankFilters{}), 4)
		assert.Empty(t, services.FilterSummaries(nil, domain.RankFilters{TopPerformersOnly: true}))
	})
}

func TestSelectTopBottom(t *testing.T) {
	t.Run("fifteen agents with a limit of ten overlap on five", func(t *testing.T) {
		var summaries []domain.PerformanceSummary
		for i := 1; i <= 15; i++ {
			summaries = append(summaries, summary(fmt.Sprintf("agent-%02d", i), 0, 0, i*5, 0))
		}

		got, err := services.SelectTopBottom(summaries, 10)

		require.NoError(t, err)
		require.Len(t, got.Top, 10)
		require.Len(t, got.Bottom, 10)
		assert.Equal(t, "agent-15", got.Top[0].AgentName)
		assert.Equal(t, 1, got.Top[0].PerformanceRank)
		assert.Equal(t, "agent-01", got.Bottom[0].AgentName)
		assert.Equal(t, 15, got.Bottom[0].PerformanceRank)

		inTop := make(map[uuid.UUID]bool)
		for _, e := range got.Top {
			inTop[e.AgentID] = true
		}
		overlap := 0
		for _, e := range got.Bottom {
			if inTop[e.AgentID] {
				overlap++
			}
		}
		assert.Equal(t, 5, overlap)
	})

	t.Run("fewer agents than the limit", func(t *testing.T) {
		summaries := []domain.PerformanceSummary{
			summary("a", 0, 0, 10, 0),
			summary("b", 0, 0, 20, 0),
		}

		got, err := services.SelectTopBottom(summaries, 5)

		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, names(got.Top))
		assert.Equal(t, []string{"a", "b"}, names(got.Bottom))
	})

	t.Run("empty input", func(t *testing.T) {
		got, err := services.SelectTopBottom(nil, 3)
		require.NoError(t, err)
		assert.Empty(t, got.Top)
		assert.Empty(t, got.Bottom)
	})

	t.Run("limit must be positive", func(t *testing.T) {
		_, err := services.SelectTopBottom(nil, 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidLimit)
	})
}
