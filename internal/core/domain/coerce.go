package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxCount caps a single coerced count so sums over a window cannot overflow.
const maxCount = math.MaxInt32

// CoerceCount turns a raw column value into a non-negative integer.
// Nil, NaN, infinities, negatives and non-numeric text all become 0.
func CoerceCount(v any) int {
	f, ok := CoerceFloat(v)
	if !ok || f <= 0 {
		return 0
	}
	if f >= maxCount {
		return maxCount
	}
	return int(math.Round(f))
}

// CoerceFloat turns a raw column value into a finite float.
func CoerceFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return CoerceFloat(string(n))
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// CoerceDate turns a raw date or timestamp value into YYYY-MM-DD.
// Timestamps keep the calendar day they were written with; no zone conversion happens.
func CoerceDate(v any) (string, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return "", false
		}
		return d.Format(DateLayout), true
	case *time.Time:
		if d == nil {
			return "", false
		}
		return CoerceDate(*d)
	case string:
		s := strings.TrimSpace(d)
		if len(s) < len(DateLayout) {
			return "", false
		}
		day := s[:len(DateLayout)]
		if _, err := time.Parse(DateLayout, day); err != nil {
			return "", false
		}
		return day, true
	case []byte:
		return CoerceDate(string(d))
	}
	return "", false
}

// CoerceUUID turns a raw identifier value into a UUID.
func CoerceUUID(v any) (uuid.UUID, bool) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, id != uuid.Nil
	case [16]byte:
		u := uuid.UUID(id)
		return u, u != uuid.Nil
	case string:
		u, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return uuid.Nil, false
		}
		return u, u != uuid.Nil
	case []byte:
		if len(id) == 16 {
			u, err := uuid.FromBytes(id)
			return u, err == nil && u != uuid.Nil
		}
		return CoerceUUID(string(id))
	}
	return uuid.Nil, false
}

// CoerceText turns a raw text value into a string, keeping its case and inner spacing.
func CoerceText(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []byte:
		return strings.TrimSpace(string(s))
	}
	return ""
}

// Clamp bounds f to [lo, hi].
func Clamp(f, lo, hi float64) float64 {
	if math.IsNaN(f) {
		return lo
	}
	return math.Max(lo, math.Min(hi, f))
}
