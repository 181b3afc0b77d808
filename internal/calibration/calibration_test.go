package calibration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	rule    string
	coeffs  []Coefficient
	ruleErr error
}

func (f fakeSource) CalculationRule(context.Context, int64) (string, error) {
	return f.rule, f.ruleErr
}

func (f fakeSource) Coefficients(context.Context, int64) ([]Coefficient, error) {
	return f.coeffs, nil
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 12, 0, 0, 0, time.UTC)
}

func TestParseRule(t *testing.T) {
	factors, powers, err := ParseRule("[1, 0.5 ,2][0,1, 2]")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5, 2}, factors)
	assert.Equal(t, []float64{0, 1, 2}, powers)

	_, _, err = ParseRule("[1,2]")
	assert.Error(t, err)
	_, _, err = ParseRule("[1,x][0,1]")
	assert.Error(t, err)
	_, _, err = ParseRule("[1,2][0,1")
	assert.Error(t, err)
}

func TestSelectCoefficientsNeverAppliesFutureCalibration(t *testing.T) {
	all := []Coefficient{
		{Index: 0, CalibratedAt: day(1), Value: 1},
		{Index: 0, CalibratedAt: day(5), Value: 2},
		{Index: 0, CalibratedAt: day(20), Value: 99},
		{Index: 1, CalibratedAt: day(3), Value: 10},
		{Index: 1, CalibratedAt: day(10), Value: 11},
		{Index: 2, CalibratedAt: day(15), Value: 7},
	}
	for cutoffDay := 1; cutoffDay <= 25; cutoffDay++ {
		cutoff := day(cutoffDay)
		for _, c := range SelectCoefficients(all, cutoff) {
			assert.False(t, c.CalibratedAt.After(cutoff), "cutoff %v selected %v", cutoff, c)
		}
	}

	got := SelectCoefficients(all, day(12))
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 2.0, got[0].Value)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, 11.0, got[1].Value)
}

func TestSelectCoefficientsIncludesCutoffInstant(t *testing.T) {
	got := SelectCoefficients([]Coefficient{{Index: 0, CalibratedAt: day(4), Value: 3}}, day(4))
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Value)
}

func TestResolveAndApplyLinear(t *testing.T) {
	src := fakeSource{
		rule:   "[1.0][1.0]",
		coeffs: []Coefficient{{Index: 0, CalibratedAt: day(1), Value: 2.0}},
	}
	formula, err := NewResolver(src).Resolve(context.Background(), 5, day(2))
	require.NoError(t, err)
	require.True(t, formula.Valid())
	for _, raw := range []float64{0, 1, 3.5, -4} {
		assert.InDelta(t, 2*raw, formula.Apply(raw), 1e-12)
	}
}

func TestResolvePolynomial(t *testing.T) {
	src := fakeSource{
		rule: "[1,1,1][0,1,2]",
		coeffs: []Coefficient{
			{Index: 0, CalibratedAt: day(1), Value: 0.5},
			{Index: 1, CalibratedAt: day(1), Value: 2},
			{Index: 2, CalibratedAt: day(1), Value: 0.1},
		},
	}
	formula, err := NewResolver(src).Resolve(context.Background(), 1, day(2))
	require.NoError(t, err)
	assert.InDelta(t, 0.5+2*3+0.1*9, formula.Apply(3), 1e-12)
}

func TestResolveCountMismatchIsNoCalibration(t *testing.T) {
	src := fakeSource{
		rule: "[1,1][0,1]",
		coeffs: []Coefficient{
			{Index: 0, CalibratedAt: day(1), Value: 1},
			{Index: 1, CalibratedAt: day(9), Value: 1},
		},
	}
	formula, err := NewResolver(src).Resolve(context.Background(), 1, day(2))
	assert.ErrorIs(t, err, ErrNoCalibration)
	assert.False(t, formula.Valid())
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewResolver(fakeSource{ruleErr: boom}).Resolve(context.Background(), 1, day(2))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoCalibration)
}
