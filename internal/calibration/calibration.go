// Package calibration resolves the polynomial that converts a sensor's raw
// readings into calibrated values.
//
// A sensor type carries a calculation rule of two bracketed lists, factors and
// powers. Each sensor carries time-stamped coefficients per index. The formula
// applied to a raw value v is
//
//	sum_i factor[i] * coefficient[i] * v ** power[i]
//
// Coefficients calibrated after the measurement are never applied.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoCalibration marks a sensor for which no consistent formula exists at
// the requested time. Callers fall back to uncalibrated values.
var ErrNoCalibration = errors.New("no calibration available")

// Coefficient is one calibration constant for a sensor.
type Coefficient struct {
	Index        int
	CalibratedAt time.Time
	Value        float64
}

// Formula is a resolved calibration polynomial.
type Formula struct {
	Factors      []float64
	Powers       []float64
	Coefficients []float64
}

// Valid reports whether the formula has at least one term and all three
// component lists have the same length.
func (f Formula) Valid() bool {
	n := len(f.Factors)
	return n > 0 && len(f.Powers) == n && len(f.Coefficients) == n
}

// Apply evaluates the polynomial for raw value v.
func (f Formula) Apply(v float64) float64 {
	var sum float64
	for i := range f.Factors {
		sum += f.Factors[i] * f.Coefficients[i] * math.Pow(v, f.Powers[i])
	}
	return sum
}

// Source supplies calibration data from the store.
type Source interface {
	CalculationRule(ctx context.Context, sensorID int64) (string, error)
	Coefficients(ctx context.Context, sensorID int64) ([]Coefficient, error)
}

// Resolver looks up calibration formulas.
type Resolver struct {
	source Source
}

// NewResolver constructs a Resolver backed by source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the formula for sensorID valid at cutoff. Store failures are
// returned as-is; an inconsistent rule or coefficient set yields an invalid
// Formula and an error wrapping ErrNoCalibration.
func (r *Resolver) Resolve(ctx context.Context, sensorID int64, cutoff time.Time) (Formula, error) {
	rule, err := r.source.CalculationRule(ctx, sensorID)
	if err != nil {
		return Formula{}, fmt.Errorf("calculation rule for sensor %d: %w", sensorID, err)
	}
	factors, powers, err := ParseRule(rule)
	if err != nil {
		return Formula{}, fmt.Errorf("%w: sensor %d: %v", ErrNoCalibration, sensorID, err)
	}
	all, err := r.source.Coefficients(ctx, sensorID)
	if err != nil {
		return Formula{}, fmt.Errorf("calibration coefficients for sensor %d: %w", sensorID, err)
	}
	selected := SelectCoefficients(all, cutoff)

	formula := Formula{Factors: factors, Powers: powers, Coefficients: make([]float64, len(selected))}
	for i, c := range selected {
		formula.Coefficients[i] = c.Value
	}
	if !formula.Valid() {
		return Formula{}, fmt.Errorf("%w: sensor %d: %d factors, %d powers, %d coefficients",
			ErrNoCalibration, sensorID, len(factors), len(powers), len(selected))
	}
	return formula, nil
}

// SelectCoefficients drops coefficients calibrated after cutoff and keeps the
// most recent remaining entry per index. The result is ordered by index.
func SelectCoefficients(all []Coefficient, cutoff time.Time) []Coefficient {
	latest := make(map[int]Coefficient, len(all))
	for _, c := range all {
		if c.CalibratedAt.After(cutoff) {
			continue
		}
		if prev, ok := latest[c.Index]; ok && prev.CalibratedAt.After(c.CalibratedAt) {
			continue
		}
		latest[c.Index] = c
	}
	out := make([]Coefficient, 0, len(latest))
	for _, c := range latest {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ParseRule splits a calculation rule such as "[1, 1][0, 1]" into factor and
// power lists.
func ParseRule(rule string) (factors, powers []float64, err error) {
	rest := rule
	lists := make([][]float64, 0, 2)
	for len(lists) < 2 {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			return nil, nil, fmt.Errorf("calculation rule %q: expected two bracketed lists", rule)
		}
		end := strings.IndexByte(rest[open:], ']')
		if end < 0 {
			return nil, nil, fmt.Errorf("calculation rule %q: unterminated list", rule)
		}
		values, err := parseList(rest[open+1 : open+end])
		if err != nil {
			return nil, nil, fmt.Errorf("calculation rule %q: %w", rule, err)
		}
		lists = append(lists, values)
		rest = rest[open+end+1:]
	}
	return lists[0], lists[1], nil
}

func parseList(body string) ([]float64, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
