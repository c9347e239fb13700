package validation

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
)

// Common validation regex patterns
var (
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validator validates request data
type Validator struct {
	errors *apperrors.ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: apperrors.NewValidationErrors(),
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

// Errors returns the validation errors
func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Required validates that a string is not empty
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "This field is required")
	}
	return v
}

// UUID validates UUID format
func (v *Validator) UUID(field, value string) *Validator {
	if value != "" && !uuidRegex.MatchString(value) {
		v.errors.Add(field, "Must be a valid UUID")
	}
	return v
}

// Date validates a calendar date in YYYY-MM-DD form
func (v *Validator) Date(field, value string) *Validator {
	if value == "" {
		return v
	}
	if !dateRegex.MatchString(value) {
		v.errors.Add(field, "Must be a date in YYYY-MM-DD format")
		return v
	}
	if _, err := time.Parse(domain.DateLayout, value); err != nil {
		v.errors.Add(field, "Must be a valid calendar date")
	}
	return v
}

// Min validates minimum integer value
func (v *Validator) Min(field string, value, min int) *Validator {
	if value < min {
		v.errors.Add(field, "Must be at least "+strconv.Itoa(min))
	}
	return v
}

// Range validates integer is within range
func (v *Validator) Range(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.errors.Add(field, "Must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return v
}

// OneOf validates value is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v // Empty is handled by Required
	}

	for _, a := range allowed {
		if value == a {
			return v
		}
	}

	v.errors.Add(field, "Must be one of: "+strings.Join(allowed, ", "))
	return v
}

// Custom adds a custom validation
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	if !valid {
		v.errors.Add(field, message)
	}
	return v
}

// DecodeAndValidate decodes JSON request body and runs basic validation
func DecodeAndValidate[T any](r *http.Request) (*T, error) {
	var req T

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}

	return &req, nil
}

// ParseUUIDQueryParam parses an optional UUID query parameter. Failures are
// recorded on v.
func ParseUUIDQueryParam(r *http.Request, v *Validator, key string) *uuid.UUID {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		v.Custom(key, false, "Must be a valid UUID")
		return nil
	}
	return &id
}

// ParseWindow reads start, end and teamLeadId. Missing dates fall back to
// the given window so that a bare request follows the live window.
func ParseWindow(r *http.Request, fallback domain.AggregationWindow) (domain.AggregationWindow, error) {
	v := NewValidator()
	q := r.URL.Query()

	start := strings.TrimSpace(q.Get("start"))
	end := strings.TrimSpace(q.Get("end"))
	v.Date("start", start).Date("end", end)
	teamLeadID := ParseUUIDQueryParam(r, v, "teamLeadId")

	if v.HasErrors() {
		return domain.AggregationWindow{}, v.Errors()
	}

	if start == "" {
		start = fallback.StartDate
	}
	if end == "" {
		end = fallback.EndDate
	}
	return domain.NewAggregationWindow(start, end, teamLeadID)
}

// ParseRankOptions reads the sort and filter parameters of a ranking request.
func ParseRankOptions(r *http.Request) (domain.RankOptions, error) {
	opts := domain.DefaultRankOptions()
	v := NewValidator()
	q := r.URL.Query()

	if sortBy := q.Get("sortBy"); sortBy != "" {
		v.OneOf("sortBy", sortBy, []string{
			string(domain.SortByName), string(domain.SortByCalls), string(domain.SortByEmails),
			string(domain.SortByEfficiency), string(domain.SortBySatisfaction),
		})
		opts.SortBy = domain.SortKey(sortBy)
	}
	if order := strings.ToLower(q.Get("sortOrder")); order != "" {
		v.OneOf("sortOrder", order, []string{string(domain.SortAsc), string(domain.SortDesc)})
		opts.SortOrder = domain.SortOrder(order)
	}

	opts.Filters.Search = strings.TrimSpace(q.Get("search"))
	opts.Filters.MinCalls = parseMinimum(r, v, "minCalls")
	opts.Filters.MinEmails = parseMinimum(r, v, "minEmails")
	opts.Filters.MinLiveChat = parseMinimum(r, v, "minLiveChat")
	opts.Filters.MinEfficiency = parseMinimum(r, v, "minEfficiency")
	if opts.Filters.MinEfficiency > domain.MaxEfficiencyScore {
		v.Range("minEfficiency", opts.Filters.MinEfficiency, 0, domain.MaxEfficiencyScore)
	}
	opts.Filters.TopPerformersOnly = ParseBoolQueryParam(r, "topPerformers", false)

	if v.HasErrors() {
		return domain.RankOptions{}, v.Errors()
	}
	return opts, nil
}

func parseMinimum(r *http.Request, v *Validator, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		v.Custom(key, false, "Must be an integer")
		return 0
	}
	v.Min(key, value, 0)
	return value
}

// ParseIntQueryParam safely parses an integer query parameter
func ParseIntQueryParam(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 {
		return defaultValue
	}

	return value
}

// ParseBoolQueryParam safely parses a boolean query parameter
func ParseBoolQueryParam(r *http.Request, key string, defaultValue bool) bool {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
