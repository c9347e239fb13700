package http

import (
	"encoding/json"
	"net/http"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
)

// SuccessResponse wraps a successful response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ListResponse wraps a list of items (non-paginated)
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// WindowedResponse is a list computed over an aggregation window.
type WindowedResponse[T any] struct {
	Window domain.AggregationWindow `json:"window"`
	Data   []T                      `json:"data"`
	Count  int                      `json:"count"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The header has already been sent, nothing useful to do on failure.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success response
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteAccepted writes a 202 with a message
func WriteAccepted(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusAccepted, SuccessResponse{Data: data, Message: message})
}

// WriteList writes a simple list response
func WriteList[T any](w http.ResponseWriter, data []T) {
	if data == nil {
		data = []T{}
	}
	WriteJSON(w, http.StatusOK, ListResponse[T]{Data: data, Count: len(data)})
}

// WriteWindowed writes a list together with the window it covers
func WriteWindowed[T any](w http.ResponseWriter, window domain.AggregationWindow, data []T) {
	if data == nil {
		data = []T{}
	}
	WriteJSON(w, http.StatusOK, WindowedResponse[T]{Window: window, Data: data, Count: len(data)})
}
