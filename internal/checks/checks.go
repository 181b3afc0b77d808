// Package checks scores processed samples against quality rules.
//
// A check is identified by a negative integer and produces a per-sample mask
// (1 passed, 0 failed). Checks are looked up in a Registry so new ones can be
// added by registration alone. Masks from several checks combine with AND.
package checks

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Built-in check identifiers.
const (
	OutlierID = -101
	EpochID   = -102
)

// Sample is one processed value with its measuring time.
type Sample struct {
	Time  time.Time
	Value float64
}

// Result is the outcome of one check over a sample series.
type Result struct {
	CheckID     int
	PassedAll   bool
	Mask        []int
	Description string
}

// Check validates a sample series.
type Check interface {
	ID() int
	Description() string
	Run(samples []Sample, parameter string, rules Rules) []int
}

// UnknownCheckError reports a configured check id with no registered handler.
type UnknownCheckError struct {
	ID int
}

func (e *UnknownCheckError) Error() string {
	return fmt.Sprintf("check %d is not registered", e.ID)
}

// Registry maps check ids to handlers.
type Registry struct {
	mu     sync.RWMutex
	checks map[int]Check
}

// NewRegistry returns a registry holding the given checks.
func NewRegistry(checks ...Check) *Registry {
	r := &Registry{checks: make(map[int]Check, len(checks))}
	for _, c := range checks {
		r.Register(c)
	}
	return r
}

// DefaultRegistry returns a registry with the outlier and epoch checks.
func DefaultRegistry() *Registry {
	return NewRegistry(Outlier{}, Epoch{})
}

// Register adds or replaces the handler for c.ID().
func (r *Registry) Register(c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[c.ID()] = c
}

// Lookup returns the handler for id.
func (r *Registry) Lookup(id int) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checks[id]
	return c, ok
}

// IDs returns the registered ids in descending order (-101 before -102).
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.checks))
	for id := range r.checks {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	return ids
}

// Run executes a single check.
func (r *Registry) Run(id int, samples []Sample, parameter string, rules Rules) (Result, error) {
	c, ok := r.Lookup(id)
	if !ok {
		return Result{}, &UnknownCheckError{ID: id}
	}
	mask := c.Run(samples, parameter, rules)
	return Result{
		CheckID:     id,
		PassedAll:   allPassed(mask),
		Mask:        mask,
		Description: c.Description(),
	}, nil
}

// Evaluation is the outcome of every active check over one series.
type Evaluation struct {
	Results []Result
	// Valid is the AND of all result masks.
	Valid []int
	// Skipped lists configured ids with no handler.
	Skipped []int
	// MissingBand is set when the outlier check ran for a parameter without
	// a configured band, so only the sentinel was checked.
	MissingBand bool
}

// Evaluate runs every check in rules.CheckIDs(). Unknown ids are collected in
// Skipped and do not affect Valid.
func (r *Registry) Evaluate(samples []Sample, parameter string, rules Rules) Evaluation {
	eval := Evaluation{Valid: make([]int, len(samples))}
	for i := range eval.Valid {
		eval.Valid[i] = 1
	}
	for _, id := range rules.CheckIDs() {
		res, err := r.Run(id, samples, parameter, rules)
		if err != nil {
			eval.Skipped = append(eval.Skipped, id)
			continue
		}
		if id == OutlierID {
			if _, ok := rules.Band(parameter); !ok {
				eval.MissingBand = true
			}
		}
		for i, m := range res.Mask {
			eval.Valid[i] &= m
		}
		eval.Results = append(eval.Results, res)
	}
	return eval
}

func allPassed(mask []int) bool {
	for _, m := range mask {
		if m == 0 {
			return false
		}
	}
	return true
}

// Outlier fails samples equal to the sentinel or outside the parameter band.
// A parameter without a configured band is only compared to the sentinel.
type Outlier struct{}

func (Outlier) ID() int             { return OutlierID }
func (Outlier) Description() string { return "check for outliers" }

func (Outlier) Run(samples []Sample, parameter string, rules Rules) []int {
	band, hasBand := rules.Band(parameter)
	mask := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s.Value == rules.Sentinel():
		case hasBand && !band.Contains(s.Value):
		default:
			mask[i] = 1
		}
	}
	return mask
}

// Epoch fails samples measured before the configured minimum time.
type Epoch struct{}

func (Epoch) ID() int             { return EpochID }
func (Epoch) Description() string { return "check for dates before minimum measuring time" }

func (Epoch) Run(samples []Sample, _ string, rules Rules) []int {
	minTime := rules.MinMeasuringTime()
	mask := make([]int, len(samples))
	for i, s := range samples {
		if !s.Time.Before(minTime) {
			mask[i] = 1
		}
	}
	return mask
}
