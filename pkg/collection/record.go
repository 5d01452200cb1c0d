package collection

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// DefaultIdentityField is the identity field used when none is configured.
const DefaultIdentityField = "id"

// Record is a single JSON-compatible entity: string keys mapped to strings,
// numbers, booleans, nil, nested records and slices.
type Record map[string]any

// Identity returns the value of field. A nil value or an empty string counts
// as no identity.
func (r Record) Identity(field string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return nil, false
	}
	return v, true
}

// HasIdentity reports whether the record carries an identity value.
func (r Record) HasIdentity(field string) bool {
	_, ok := r.Identity(field)
	return ok
}

// Clone returns a deep copy of the record. Nested maps and slices are copied
// so the clone shares no mutable state with r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = map[string]any(Record(e).Clone())
		}
		return out
	default:
		return v
	}
}

// CloneAll deep-copies a slice of records.
func CloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// IdentityKey returns the canonical comparison key for an identity value.
// Numbers compare by value regardless of their Go type, and a number equals
// its decimal string form, since JSON servers are not consistent about it.
func IdentityKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return normalizeNumber(string(t))
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// formatFloat renders f in plain decimal form. Integral values inside the
// int64 range format like the equivalent integer.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func normalizeNumber(s string) string {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return formatFloat(f)
	}
	return s
}
