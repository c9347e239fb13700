package domain

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
)

// DateLayout is the calendar-day format used for every date in the engine.
const DateLayout = "2006-01-02"

// MaxWindowDays bounds the number of calendar days a single window may span.
const MaxWindowDays = 366

// AggregationWindow is the query scope of an aggregation pass.
// Both dates are inclusive calendar days compared as strings.
type AggregationWindow struct {
	StartDate  string     `json:"startDate"`
	EndDate    string     `json:"endDate"`
	TeamLeadID *uuid.UUID `json:"teamLeadId,omitempty"`
}

// NewAggregationWindow builds a validated window.
func NewAggregationWindow(startDate, endDate string, teamLeadID *uuid.UUID) (AggregationWindow, error) {
	w := AggregationWindow{StartDate: startDate, EndDate: endDate, TeamLeadID: teamLeadID}
	if err := w.Validate(); err != nil {
		return AggregationWindow{}, err
	}
	return w, nil
}

// TrailingWindow returns the window of the last `days` calendar days ending on `today`.
func TrailingWindow(today time.Time, days int) AggregationWindow {
	if days < 1 {
		days = 1
	}
	end := today.Format(DateLayout)
	start := today.AddDate(0, 0, -(days - 1)).Format(DateLayout)
	return AggregationWindow{StartDate: start, EndDate: end}
}

// Validate checks date formats, ordering and span.
func (w AggregationWindow) Validate() error {
	start, err := time.Parse(DateLayout, w.StartDate)
	if err != nil {
		return apperrors.ErrInvalidDate
	}
	end, err := time.Parse(DateLayout, w.EndDate)
	if err != nil {
		return apperrors.ErrInvalidDate
	}
	if start.After(end) {
		return apperrors.ErrInvalidWindow
	}
	if int(end.Sub(start).Hours()/24)+1 > MaxWindowDays {
		return apperrors.ErrWindowTooWide
	}
	return nil
}

// Dates lists every calendar day in the window, inclusive, in ascending order.
// An invalid window yields nil.
func (w AggregationWindow) Dates() []string {
	start, err := time.Parse(DateLayout, w.StartDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse(DateLayout, w.EndDate)
	if err != nil || start.After(end) {
		return nil
	}

	dates := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// Contains reports whether the YYYY-MM-DD date falls inside the window.
func (w AggregationWindow) Contains(date string) bool {
	return date >= w.StartDate && date <= w.EndDate
}

// Equal compares two windows by value, including the team scope.
func (w AggregationWindow) Equal(other AggregationWindow) bool {
	if w.StartDate != other.StartDate || w.EndDate != other.EndDate {
		return false
	}
	switch {
	case w.TeamLeadID == nil && other.TeamLeadID == nil:
		return true
	case w.TeamLeadID == nil || other.TeamLeadID == nil:
		return false
	default:
		return *w.TeamLeadID == *other.TeamLeadID
	}
}

// WithoutTeam returns a copy of the window spanning every team.
func (w AggregationWindow) WithoutTeam() AggregationWindow {
	w.TeamLeadID = nil
	return w
}

// InScope reports whether a team lead belongs to the window's team scope.
func (w AggregationWindow) InScope(teamLeadID uuid.UUID) bool {
	return w.TeamLeadID == nil || *w.TeamLeadID == teamLeadID
}
