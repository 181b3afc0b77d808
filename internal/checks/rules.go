package checks

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Band is an inclusive [Low, High] range of acceptable values for a parameter.
type Band struct {
	Low  float64
	High float64
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Rules is the immutable rule set handed to checks at call time. Build it with
// NewRules; the zero value has no bands and no active checks.
type Rules struct {
	sentinel float64
	minTime  time.Time
	checkIDs []int
	bands    map[string]Band
}

// NewRules copies its inputs into a Rules value. Parameter names are matched
// case-insensitively.
func NewRules(sentinel float64, minTime time.Time, checkIDs []int, bands map[string]Band) Rules {
	r := Rules{
		sentinel: sentinel,
		minTime:  minTime,
		checkIDs: append([]int(nil), checkIDs...),
		bands:    make(map[string]Band, len(bands)),
	}
	for name, band := range bands {
		r.bands[foldKey(name)] = band
	}
	return r
}

// Sentinel is the value a logger writes for "no reading".
func (r Rules) Sentinel() float64 { return r.sentinel }

// MinMeasuringTime is the earliest plausible sample timestamp.
func (r Rules) MinMeasuringTime() time.Time { return r.minTime }

// CheckIDs returns the active checks in execution order.
func (r Rules) CheckIDs() []int {
	return append([]int(nil), r.checkIDs...)
}

// Band returns the outlier band for a parameter type.
func (r Rules) Band(parameter string) (Band, bool) {
	b, ok := r.bands[foldKey(parameter)]
	return b, ok
}

func foldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
