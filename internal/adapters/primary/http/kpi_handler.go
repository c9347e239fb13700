package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/lorrc/team-kpi-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/team-kpi-backend/internal/adapters/primary/validation"
	"github.com/lorrc/team-kpi-backend/internal/auth"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"github.com/lorrc/team-kpi-backend/internal/infrastructure/logging"
)

const (
	defaultTopBottomLimit = 10
	maxTopBottomLimit     = 100
)

// KPIHandler serves aggregates, summaries and rankings, and controls the
// live aggregation window.
type KPIHandler struct {
	kpi          ports.KPIService
	live         ports.LiveService
	errorHandler *ErrorHandler
	logger       *slog.Logger

	// defaultDays sizes the fallback window when live aggregation is off.
	defaultDays int
	now         func() time.Time

	refreshLimiter func(http.Handler) http.Handler
}

// NewKPIHandler creates a new KPI handler. live may be nil.
func NewKPIHandler(
	kpi ports.KPIService,
	live ports.LiveService,
	defaultDays int,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *KPIHandler {
	return &KPIHandler{
		kpi:          kpi,
		live:         live,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "kpi"),
		defaultDays:  defaultDays,
		now:          time.Now,
	}
}

// WithRefreshLimiter guards the forced refresh endpoint.
func (h *KPIHandler) WithRefreshLimiter(limiter func(http.Handler) http.Handler) *KPIHandler {
	h.refreshLimiter = limiter
	return h
}

// RegisterRoutes sets up the routing for all KPI endpoints.
func (h *KPIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/aggregates", h.HandleAggregates)
	r.Get("/agent-aggregates", h.HandleAgentAggregates)
	r.Get("/summaries", h.HandleSummaries)
	r.Get("/rankings", h.HandleRankings)
	r.Get("/top-bottom", h.HandleTopBottom)

	r.Route("/live", func(r chi.Router) {
		r.Get("/", h.HandleLiveSnapshot)
		r.Put("/window", h.HandleSetLiveWindow)
		r.Post("/invalidate", h.HandleInvalidate)
		r.Group(func(r chi.Router) {
			if h.refreshLimiter != nil {
				r.Use(h.refreshLimiter)
			}
			r.Post("/refresh", h.HandleRefresh)
		})
	})
}

// --- Request DTOs ---

// SetWindowRequest defines the expected JSON body for moving the live window
type SetWindowRequest struct {
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	TeamLeadID string `json:"teamLeadId"`
}

// Validate validates the set window request
func (r *SetWindowRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("startDate", r.StartDate).Date("startDate", r.StartDate)
	v.Required("endDate", r.EndDate).Date("endDate", r.EndDate)
	v.UUID("teamLeadId", r.TeamLeadID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

func (r *SetWindowRequest) window() (domain.AggregationWindow, error) {
	var teamLeadID *uuid.UUID
	if r.TeamLeadID != "" {
		id, err := uuid.Parse(r.TeamLeadID)
		if err != nil {
			return domain.AggregationWindow{}, apperrors.ErrBadRequest
		}
		teamLeadID = &id
	}
	return domain.NewAggregationWindow(r.StartDate, r.EndDate, teamLeadID)
}

// --- Handlers ---

// HandleAggregates handles GET /kpi/aggregates
func (h *KPIHandler) HandleAggregates(w http.ResponseWriter, r *http.Request) {
	window, ok := h.parseWindow(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("view") == "team-totals" {
		totals, err := h.kpi.TeamTotals(r.Context(), window)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		WriteWindowed(w, window, totals)
		return
	}

	aggregates, err := h.kpi.Aggregate(r.Context(), window)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteWindowed(w, window, aggregates)
}

// HandleAgentAggregates handles GET /kpi/agent-aggregates
func (h *KPIHandler) HandleAgentAggregates(w http.ResponseWriter, r *http.Request) {
	window, ok := h.parseWindow(w, r)
	if !ok {
		return
	}

	aggregates, err := h.kpi.AggregateByAgent(r.Context(), window)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteWindowed(w, window, aggregates)
}

// HandleSummaries handles GET /kpi/summaries
func (h *KPIHandler) HandleSummaries(w http.ResponseWriter, r *http.Request) {
	window, ok := h.parseWindow(w, r)
	if !ok {
		return
	}

	v := validation.NewValidator()
	agentID := validation.ParseUUIDQueryParam(r, v, "agentId")
	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	summaries, err := h.kpi.Summarize(r.Context(), window, domain.SummaryScope{
		TeamLeadID: window.TeamLeadID,
		AgentID:    agentID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteWindowed(w, window, summaries)
}

// HandleRankings handles GET /kpi/rankings
func (h *KPIHandler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	window, ok := h.parseWindow(w, r)
	if !ok {
		return
	}

	opts, err := validation.ParseRankOptions(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	summaries, err := h.kpi.Summarize(r.Context(), window, domain.SummaryScope{TeamLeadID: window.TeamLeadID})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ranked, err := h.kpi.Rank(summaries, opts)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteWindowed(w, window, ranked)
}

// HandleTopBottom handles GET /kpi/top-bottom. The comparison spans every
// team, so team-scoped callers are refused.
func (h *KPIHandler) HandleTopBottom(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}
	if claims.TeamScope() != nil {
		h.errorHandler.Handle(w, r, apperrors.ErrForbidden)
		return
	}

	window, err := validation.ParseWindow(r, h.defaultWindow())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	limit := defaultTopBottomLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit = validation.ParseIntQueryParam(r, "limit", 0)
		v := validation.NewValidator()
		v.Range("limit", limit, 1, maxTopBottomLimit)
		if v.HasErrors() {
			h.errorHandler.Handle(w, r, v.Errors())
			return
		}
	}

	result, err := h.kpi.TopBottom(r.Context(), limit, window.WithoutTeam())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, struct {
		Window domain.AggregationWindow `json:"window"`
		Limit  int                      `json:"limit"`
		*domain.TopBottom
	}{Window: window.WithoutTeam(), Limit: limit, TopBottom: result})
}

// HandleLiveSnapshot handles GET /kpi/live
func (h *KPIHandler) HandleLiveSnapshot(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok || !h.requireLive(w, r) {
		return
	}

	snapshot, err := h.live.Snapshot()
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if scope := claims.TeamScope(); scope != nil {
		snapshot = snapshot.ForTeam(*scope)
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// HandleSetLiveWindow handles PUT /kpi/live/window
func (h *KPIHandler) HandleSetLiveWindow(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireManager(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[SetWindowRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	window, err := req.window()
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := h.live.SetWindow(window); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ctx := logging.WithWindow(r.Context(), window.StartDate, window.EndDate)
	logging.LoggerFromContext(ctx, h.logger).Info("live window changed", "role", claims.Role)

	WriteAccepted(w, "Aggregation window updated", window)
}

// HandleRefresh handles POST /kpi/live/refresh
func (h *KPIHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireManager(w, r); !ok {
		return
	}

	snapshot, err := h.live.Refresh(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// HandleInvalidate handles POST /kpi/live/invalidate
func (h *KPIHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireManager(w, r); !ok {
		return
	}

	h.live.Invalidate()
	WriteAccepted(w, "Recomputation scheduled", nil)
}

// --- Helpers ---

// parseWindow reads the window and confines it to the caller's team.
func (h *KPIHandler) parseWindow(w http.ResponseWriter, r *http.Request) (domain.AggregationWindow, bool) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return domain.AggregationWindow{}, false
	}

	window, err := validation.ParseWindow(r, h.defaultWindow())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return domain.AggregationWindow{}, false
	}

	if scope := claims.TeamScope(); scope != nil {
		if window.TeamLeadID != nil && *window.TeamLeadID != *scope {
			h.errorHandler.Handle(w, r, apperrors.ErrForbidden)
			return domain.AggregationWindow{}, false
		}
		window.TeamLeadID = scope
	}
	return window, true
}

// defaultWindow follows the live window, or trails today without one.
func (h *KPIHandler) defaultWindow() domain.AggregationWindow {
	if h.live != nil {
		return h.live.Window()
	}
	return domain.TrailingWindow(h.now().UTC(), h.defaultDays)
}

func (h *KPIHandler) requireLive(w http.ResponseWriter, r *http.Request) bool {
	if h.live == nil {
		h.errorHandler.Handle(w, r, apperrors.ErrLiveNotActive)
		return false
	}
	return true
}

func (h *KPIHandler) requireManager(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := h.getClaims(w, r)
	if !ok || !h.requireLive(w, r) {
		return nil, false
	}
	if !claims.CanManageLive() {
		h.errorHandler.Handle(w, r, apperrors.ErrForbidden)
		return nil, false
	}
	return claims, true
}

// getClaims extracts and validates user claims from the request context.
func (h *KPIHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return claims, true
}
