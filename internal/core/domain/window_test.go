package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregationWindow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr error
	}{
		{"single day", "2024-01-01", "2024-01-01", nil},
		{"one month", "2024-01-01", "2024-01-31", nil},
		{"full leap year", "2024-01-01", "2024-12-31", nil},
		{"one day too wide", "2024-01-01", "2025-01-01", apperrors.ErrWindowTooWide},
		{"reversed", "2024-02-01", "2024-01-01", apperrors.ErrInvalidWindow},
		{"bad start", "2024-13-01", "2024-12-01", apperrors.ErrInvalidDate},
		{"bad end", "2024-01-01", "01/31/2024", apperrors.ErrInvalidDate},
		{"empty", "", "", apperrors.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := domain.AggregationWindow{StartDate: tt.start, EndDate: tt.end}
			err := w.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewAggregationWindow(t *testing.T) {
	lead := uuid.New()

	w, err := domain.NewAggregationWindow("2024-03-01", "2024-03-07", &lead)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", w.StartDate)
	assert.Equal(t, &lead, w.TeamLeadID)

	_, err = domain.NewAggregationWindow("2024-03-07", "2024-03-01", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidWindow)
}

func TestAggregationWindow_Dates(t *testing.T) {
	t.Run("spans month end in a leap year", func(t *testing.T) {
		w := domain.AggregationWindow{StartDate: "2024-02-27", EndDate: "2024-03-01"}
		assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, w.Dates())
	})

	t.Run("invalid window yields nothing", func(t *testing.T) {
		w := domain.AggregationWindow{StartDate: "2024-03-01", EndDate: "2024-02-01"}
		assert.Empty(t, w.Dates())
	})
}

func TestTrailingWindow(t *testing.T) {
	today := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	w := domain.TrailingWindow(today, 7)
	assert.Equal(t, "2024-03-04", w.StartDate)
	assert.Equal(t, "2024-03-10", w.EndDate)
	assert.Len(t, w.Dates(), 7)

	single := domain.TrailingWindow(today, 0)
	assert.Equal(t, single.StartDate, single.EndDate)
}

func TestAggregationWindow_ScopeAndEquality(t *testing.T) {
	lead := uuid.New()
	other := uuid.New()
	sameLead := lead

	all := domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-31"}
	team := domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-31", TeamLeadID: &lead}

	assert.True(t, all.InScope(other))
	assert.True(t, team.InScope(lead))
	assert.False(t, team.InScope(other))

	assert.True(t, team.Equal(domain.AggregationWindow{StartDate: "2024-01-01", EndDate: "2024-01-31", TeamLeadID: &sameLead}))
	assert.False(t, team.Equal(all))
	assert.False(t, all.Equal(team))
	assert.True(t, team.WithoutTeam().Equal(all))
	assert.NotNil(t, team.TeamLeadID, "WithoutTeam must not modify the receiver")

	assert.True(t, all.Contains("2024-01-01"))
	assert.True(t, all.Contains("2024-01-31"))
	assert.False(t, all.Contains("2024-02-01"))
	assert.False(t, all.Contains("2023-12-31"))
}
