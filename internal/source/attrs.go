package source

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Attrs is the loosely-typed attribute bag of one legacy record.
type Attrs map[string]any

// String returns the value at key as a trimmed string. Numbers are formatted
// without exponent; anything else yields "".
func (a Attrs) String(key string) string {
	return toString(a[key])
}

// First returns the first non-empty string among keys.
func (a Attrs) First(keys ...string) string {
	for _, k := range keys {
		if s := a.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Float returns the value at key as a float. Numeric strings are parsed.
func (a Attrs) Float(key string) (float64, bool) {
	return toFloat(a[key])
}

// Bool returns true for a JSON true or a "true" string.
func (a Attrs) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// Map returns the nested object at key, or nil.
func (a Attrs) Map(key string) Attrs {
	return toAttrs(a[key])
}

// Keys returns the sorted keys of the nested object at key. This is how
// membership sets such as a notebook's entries ({id: true}) are read.
func (a Attrs) Keys(key string) []string {
	return SortedKeys(a.Map(key))
}

// Timestamp reads a legacy Unix-seconds value (string or number) at key.
// Seconds are scaled to milliseconds before conversion, so fractional seconds
// survive. ok is false when the value is absent or unparsable.
func (a Attrs) Timestamp(key string) (time.Time, bool) {
	f, ok := toFloat(a[key])
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	ms := int64(math.Round(f * 1000))
	return time.UnixMilli(ms).UTC(), true
}

// Has reports whether key is present with a non-null value.
func (a Attrs) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func toAttrs(v any) Attrs {
	switch t := v.(type) {
	case map[string]any:
		return Attrs(t)
	case Attrs:
		return t
	}
	return nil
}
