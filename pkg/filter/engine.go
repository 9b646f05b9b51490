// ABOUTME: Range filter engine over in-memory snapshots
// ABOUTME: Pure and stable: keeps input order, never fails on bad fields

package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

// Apply returns the records of s that satisfy every range in spec, in their
// original order. A field missing from a record, or one that does not coerce
// to a number, fails its range. Fields absent from spec impose nothing.
func Apply(s record.Snapshot, spec Spec) record.Snapshot {
	active := make(map[string]Range, len(spec))
	for field, r := range spec {
		if !r.IsUnbounded() {
			active[field] = r
		}
	}
	if len(active) == 0 {
		return s
	}

	kept := make([]record.Record, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		r := s.At(i)
		if matches(r, active) {
			kept = append(kept, r)
		}
	}
	return record.NewSnapshot(kept)
}

// Matches reports whether a single record passes spec.
func Matches(r record.Record, spec Spec) bool {
	return matches(r, spec)
}

func matches(r record.Record, spec Spec) bool {
	for field, rng := range spec {
		if rng.IsUnbounded() {
			continue
		}
		raw, ok := r.Get(field)
		if !ok {
			return false
		}
		v, ok := Number(raw)
		if !ok || !rng.Contains(v) {
			return false
		}
	}
	return true
}

// Number coerces a stored field value for comparison. Strings such as
// "120m²", "120 sq ft" or "$450,000" lose their currency prefix and grouping
// commas, then read as their leading base-10 integer, so "120.5m²" is 120.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
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
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		return parseMagnitude(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseMagnitude(s string) (float64, bool) {
	s = strings.TrimLeftFunc(strings.TrimSpace(s), func(r rune) bool { return unicode.Is(unicode.Sc, r) })
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, ok := leadingInt(s)
	if !ok {
		return 0, false
	}
	return float64(n), true
}

// leadingInt reads an optionally signed run of digits at the start of s and
// ignores whatever follows it.
func leadingInt(s string) (int64, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
