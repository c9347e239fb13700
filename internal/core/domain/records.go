package domain

import (
	"github.com/google/uuid"
)

// RawRow is one source row in the table's native shape, keyed by column name.
type RawRow map[string]any

// RecordQuery scopes a single source fetch.
type RecordQuery struct {
	TeamLeadID *uuid.UUID
	StartDate  string
	EndDate    string
}

// QueryFor derives the fetch scope of a window.
func QueryFor(w AggregationWindow) RecordQuery {
	return RecordQuery{TeamLeadID: w.TeamLeadID, StartDate: w.StartDate, EndDate: w.EndDate}
}

// InteractionRecord is one normalized channel count.
type InteractionRecord struct {
	Channel    Channel    `json:"channel"`
	TeamLeadID uuid.UUID  `json:"teamLeadId"`
	AgentName  string     `json:"agentName,omitempty"`
	AgentID    *uuid.UUID `json:"agentId,omitempty"`
	Date       string     `json:"date"`
	Count      int        `json:"count"`
}

// SLARecord is one reported SLA percentage for a team lead on a day.
type SLARecord struct {
	TeamLeadID uuid.UUID `json:"teamLeadId"`
	Date       string    `json:"date"`
	Percentage float64   `json:"percentage"`
}

// PerformanceRecord is one agent's resolution and satisfaction figures for a day.
type PerformanceRecord struct {
	TeamLeadID           uuid.UUID  `json:"teamLeadId"`
	AgentName            string     `json:"agentName"`
	AgentID              *uuid.UUID `json:"agentId,omitempty"`
	Date                 string     `json:"date"`
	TicketsResolved      int        `json:"ticketsResolved"`
	CustomerSatisfaction float64    `json:"customerSatisfaction"`
	HasSatisfaction      bool       `json:"hasSatisfaction"`
}

// SourceFailure reports a source whose fetch failed during a pass.
type SourceFailure struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Collection is everything a single collect pass produced.
type Collection struct {
	Interactions []InteractionRecord
	SLA          []SLARecord
	Performance  []PerformanceRecord
	Failures     []SourceFailure
	// Skipped counts malformed rows that could not be normalized.
	Skipped int
	// Unmatched counts agent names absent from the directory.
	Unmatched int
}

// Failed reports whether the named source failed in this collection.
func (c *Collection) Failed(source string) bool {
	for _, f := range c.Failures {
		if f.Source == source {
			return true
		}
	}
	return false
}
