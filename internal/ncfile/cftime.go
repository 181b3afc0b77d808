package ncfile

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var unitDurations = map[string]time.Duration{
	"nanoseconds":  time.Nanosecond,
	"nanosecond":   time.Nanosecond,
	"ns":           time.Nanosecond,
	"microseconds": time.Microsecond,
	"microsecond":  time.Microsecond,
	"us":           time.Microsecond,
	"milliseconds": time.Millisecond,
	"millisecond":  time.Millisecond,
	"ms":           time.Millisecond,
	"seconds":      time.Second,
	"second":       time.Second,
	"secs":         time.Second,
	"sec":          time.Second,
	"s":            time.Second,
	"minutes":      time.Minute,
	"minute":       time.Minute,
	"mins":         time.Minute,
	"min":          time.Minute,
	"hours":        time.Hour,
	"hour":         time.Hour,
	"hrs":          time.Hour,
	"hr":           time.Hour,
	"h":            time.Hour,
	"days":         24 * time.Hour,
	"day":          24 * time.Hour,
	"d":            24 * time.Hour,
}

// ParseTimeUnits splits a CF "<unit> since <reference>" string.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: expected \"<unit> since <reference>\"", units)
	}
	step, ok := unitDurations[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: unknown unit %q", units, unit)
	}
	origin, err := ParseTimestamp(ref)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("time units %q: reference: %w", units, err)
	}
	return step, origin, nil
}

// DecodeTimes converts a time variable into UTC instants. Numeric values are
// offsets described by units; textual values are parsed directly.
func DecodeTimes(values any, units string) ([]time.Time, error) {
	if texts, ok := values.([]string); ok {
		out := make([]time.Time, len(texts))
		for i, s := range texts {
			t, err := ParseTimestamp(s)
			if err != nil {
				return nil, fmt.Errorf("time[%d] %q: %w", i, s, err)
			}
			out[i] = t
		}
		return out, nil
	}

	step, origin, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	// Integer offsets are applied exactly; widening int64 nanoseconds to
	// float64 would lose precision.
	if ints, ok := values.([]int64); ok {
		out := make([]time.Time, len(ints))
		for i, n := range ints {
			out[i] = origin.Add(time.Duration(n) * step).UTC()
		}
		return out, nil
	}
	offsets, err := toFloats(values)
	if err != nil {
		return nil, fmt.Errorf("time values: %w", err)
	}
	out := make([]time.Time, len(offsets))
	for i, off := range offsets {
		if math.IsNaN(off) || math.IsInf(off, 0) {
			return nil, fmt.Errorf("time[%d] is not finite", i)
		}
		out[i] = origin.Add(time.Duration(math.Round(off * float64(step)))).UTC()
	}
	return out, nil
}
