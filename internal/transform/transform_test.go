package transform_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroingest/internal/calibration"
	"hydroingest/internal/checks"
	"hydroingest/internal/geo"
	"hydroingest/internal/ncfile"
	"hydroingest/internal/transform"
)

type stubResolver struct {
	formula calibration.Formula
	err     error
	cutoffs []time.Time
}

func (s *stubResolver) Resolve(_ context.Context, _ int64, cutoff time.Time) (calibration.Formula, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.formula, s.err
}

var (
	t0       = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	fixedNow = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
)

func sampleFile() *ncfile.File {
	return &ncfile.File{
		Name:         "logger3_dep42.nc",
		LoggerID:     3,
		DeploymentID: 42,
		Deployment:   ncfile.Deployment{ID: 42, Start: t0, End: t0.Add(3 * time.Minute)},
		Time:         []time.Time{t0, t0.Add(time.Minute), t0.Add(2 * time.Minute), t0.Add(3 * time.Minute)},
		Latitude:     []float64{54.1, 54.2, math.NaN(), 54.4},
		Longitude:    []float64{10.1, 10.3, 10.2, 10.0},
		Pressure:     []float64{1, 2, 3, 4},
		Variables: []ncfile.Variable{
			ncfile.Variable{Name: "pressure", Values: []float64{1, 2, 3, 4}}.WithSensor(1),
			ncfile.Variable{Name: "temperature", Values: []float64{10, 11, 12, math.NaN()}}.WithSensor(5),
			{Name: "temperature_raw", Values: []float64{5, 5.5, 6, 6.5}},
			ncfile.Variable{Name: "oxygen", Values: []float64{200, 2e13, 210, -5e12}}.WithSensor(7),
			{Name: "depth", Values: []float64{1, 2, 3, 4}},
		},
	}
}

func TestTransformCalibratesRawVariant(t *testing.T) {
	resolver := &stubResolver{formula: calibration.Formula{
		Factors: []float64{1}, Powers: []float64{1}, Coefficients: []float64{2},
	}}
	tr := transform.New(resolver, nil, fixedNow)
	f := sampleFile()

	series, ok, err := tr.Transform(context.Background(), f, "temperature", transform.SensorInfo{UnitID: 4, Parameter: "temperature"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, series.UsedRaw)
	assert.True(t, series.Calibrated)
	require.Equal(t, []time.Time{f.Deployment.End}, resolver.cutoffs)

	// row 2 has no latitude; the raw variant has a value at row 3.
	require.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{5, 5.5, 6.5}, rawValues(series))
	assert.Equal(t, []float64{10, 11, 13}, processedValues(series))

	for i, p := range series.Processed {
		assert.Equal(t, int64(i), p.RawValueID)
		assert.Equal(t, int64(i), series.Raw[i].RawValueID)
		assert.Equal(t, series.Raw[i].MeasuringTime, p.MeasuringTime)
		assert.EqualValues(t, transform.CommandUnattended, p.CommandID)
		assert.EqualValues(t, 4, p.UnitID)
		assert.Equal(t, 1, p.Valid)
		assert.Equal(t, 0, p.Published)
		assert.Equal(t, transform.SensorSettlingTime, p.SensorSettlingTime)
		assert.Equal(t, fixedNow(), p.ProcessingTime)
	}
	assert.Equal(t, int64(42), series.Raw[0].DeploymentID)
	assert.Equal(t, int64(3), series.Raw[0].LoggerID)
	assert.Equal(t, int64(5), series.Raw[0].SensorID)
	assert.Equal(t, geo.Position{Lat: 54.4, Lon: 10.0}, series.Raw[2].Location)
	assert.Equal(t, 4.0, series.Raw[2].Pressure)
}

func TestTransformIdentityWithoutRawVariant(t *testing.T) {
	resolver := &stubResolver{err: errors.New("must not be called")}
	tr := transform.New(resolver, nil, fixedNow)

	series, ok, err := tr.Transform(context.Background(), sampleFile(), "oxygen", transform.SensorInfo{Parameter: "oxygen"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, series.UsedRaw)
	assert.Empty(t, resolver.cutoffs)
	assert.Equal(t, rawValues(series), processedValues(series))
}

func TestTransformClampsOutOfRange(t *testing.T) {
	tr := transform.New(&stubResolver{}, nil, fixedNow)

	series, _, err := tr.Transform(context.Background(), sampleFile(), "oxygen", transform.SensorInfo{})
	require.NoError(t, err)
	assert.Equal(t, []float64{200, transform.ClampSentinel, transform.ClampSentinel}, rawValues(series))
	assert.Equal(t, []float64{200, transform.ClampSentinel, transform.ClampSentinel}, processedValues(series))
	require.Len(t, series.Clamped, 2)
	assert.Equal(t, 2e13, series.Clamped[0].Original)
	assert.Equal(t, -5e12, series.Clamped[1].Original)
	for _, c := range series.Clamped {
		assert.False(t, c.Processed)
	}
	assert.Equal(t, []int{1, 0, 0}, validity(series))
}

func TestTransformClampedRawIsNotCalibrated(t *testing.T) {
	resolver := &stubResolver{formula: calibration.Formula{
		Factors: []float64{1}, Powers: []float64{1}, Coefficients: []float64{1e-3},
	}}
	f := sampleFile()
	f.Variables[2] = ncfile.Variable{Name: "temperature_raw", Values: []float64{5, 5e13, 6, 6.5}}
	tr := transform.New(resolver, nil, fixedNow)

	series, _, err := tr.Transform(context.Background(), f, "temperature", transform.SensorInfo{})
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{5, transform.ClampSentinel, 6.5}, rawValues(series))
	assert.InDeltaSlice(t, []float64{0.005, transform.ClampSentinel, 0.0065}, processedValues(series), 1e-12)
	assert.Equal(t, []int{1, 0, 1}, validity(series))
	require.Len(t, series.Clamped, 1)
	assert.False(t, series.Clamped[0].Processed)

	require.NoError(t, series.ApplyValidity([]int{1, 1, 1}))
	assert.Equal(t, []int{1, 0, 1}, validity(series))
}

func TestTransformDropsRowsWithoutPressure(t *testing.T) {
	f := sampleFile()
	f.Pressure = []float64{1, math.NaN(), 3, 4}
	tr := transform.New(&stubResolver{}, nil, fixedNow)

	series, _, err := tr.Transform(context.Background(), f, "oxygen", transform.SensorInfo{})
	require.NoError(t, err)
	// row 1 lacks pressure, row 2 lacks latitude
	require.Equal(t, 2, series.Len())
	assert.Equal(t, []float64{200, transform.ClampSentinel}, rawValues(series))
	for i := range series.Raw {
		assert.False(t, math.IsNaN(series.Raw[i].Pressure))
		assert.False(t, math.IsNaN(series.Processed[i].Pressure))
	}
	assert.Equal(t, 4.0, series.Raw[1].Pressure)
}

func TestTransformClampsCalibratedValue(t *testing.T) {
	resolver := &stubResolver{formula: calibration.Formula{
		Factors: []float64{1}, Powers: []float64{1}, Coefficients: []float64{1e13},
	}}
	tr := transform.New(resolver, nil, fixedNow)

	series, _, err := tr.Transform(context.Background(), sampleFile(), "temperature", transform.SensorInfo{})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5.5, 6.5}, rawValues(series))
	for _, p := range series.Processed {
		assert.Equal(t, float64(transform.ClampSentinel), p.Value)
	}
}

func TestTransformFallsBackWithoutCalibration(t *testing.T) {
	resolver := &stubResolver{err: calibration.ErrNoCalibration}
	tr := transform.New(resolver, nil, fixedNow)

	series, ok, err := tr.Transform(context.Background(), sampleFile(), "temperature", transform.SensorInfo{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, series.Calibrated)
	// the stored column has NaN at row 3, the position is missing at row 2
	assert.Equal(t, []float64{10, 11}, rawValues(series))
	assert.Equal(t, []float64{10, 11}, processedValues(series))
}

func TestTransformPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	tr := transform.New(&stubResolver{err: boom}, nil, fixedNow)

	_, ok, err := tr.Transform(context.Background(), sampleFile(), "temperature", transform.SensorInfo{})
	require.ErrorIs(t, err, boom)
	assert.True(t, ok)
}

func TestTransformSkipsUnmappedColumns(t *testing.T) {
	tr := transform.New(&stubResolver{}, nil, fixedNow)

	for _, column := range []string{"depth", "missing"} {
		_, ok, err := tr.Transform(context.Background(), sampleFile(), column, transform.SensorInfo{})
		require.NoError(t, err)
		assert.False(t, ok, column)
	}
}

func TestTransformEmptySeries(t *testing.T) {
	f := sampleFile()
	f.Variables[3] = ncfile.Variable{Name: "oxygen", Values: []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}}.WithSensor(7)
	tr := transform.New(&stubResolver{}, nil, fixedNow)

	_, ok, err := tr.Transform(context.Background(), f, "oxygen", transform.SensorInfo{})
	require.ErrorIs(t, err, transform.ErrEmptySeries)
	assert.True(t, ok)
}

func TestSeriesDeploymentAndIDs(t *testing.T) {
	tr := transform.New(&stubResolver{}, nil, fixedNow)
	series, _, err := tr.Transform(context.Background(), sampleFile(), "oxygen", transform.SensorInfo{})
	require.NoError(t, err)

	dep, err := series.Deployment(99)
	require.NoError(t, err)
	assert.Equal(t, int64(42), dep.DeploymentID)
	assert.Equal(t, int64(3), dep.LoggerID)
	assert.Equal(t, int64(99), dep.ContactID)
	assert.Equal(t, t0, dep.TimeStart)
	assert.Equal(t, t0.Add(3*time.Minute), dep.TimeEnd)
	assert.Equal(t, geo.Position{Lat: 54.1, Lon: 10.1}, dep.PositionStart)
	assert.Equal(t, geo.Position{Lat: 54.4, Lon: 10.0}, dep.PositionEnd)
	assert.Equal(t, geo.Ring{
		{Lat: 54.1, Lon: 10.0},
		{Lat: 54.4, Lon: 10.0},
		{Lat: 54.4, Lon: 10.3},
		{Lat: 54.1, Lon: 10.3},
		{Lat: 54.1, Lon: 10.0},
	}, dep.BoundingBox)

	first, last := series.AssignIDs(100)
	assert.Equal(t, int64(100), first)
	assert.Equal(t, int64(102), last)
	assert.Equal(t, int64(101), series.Processed[1].ProcessedValueID)

	require.NoError(t, series.ApplyValidity([]int{0, 1, 1}))
	// rows 1 and 2 were clamped and stay invalid
	assert.Equal(t, []int{0, 0, 0}, validity(series))
	require.Error(t, series.ApplyValidity([]int{1}))

	samples := series.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, 200.0, samples[0].Value)

	links := series.Links()
	require.Len(t, links, 3)
	assert.Equal(t, transform.Link{ProcessedValueID: 102, RawValueID: 2, DeploymentID: 42, LoggerID: 3, SensorID: 7}, links[2])

	at := fixedNow()
	rows := series.CheckRows([]checks.Result{
		{CheckID: checks.OutlierID, Mask: []int{1, 0, 0}, Description: "check for outliers"},
		{CheckID: checks.EpochID, Mask: []int{1, 1, 1}, Description: "epoch"},
	}, at)
	require.Len(t, rows, 6)
	assert.Equal(t, transform.CheckRow{CheckID: checks.OutlierID, ProcessedValueID: 101, Time: at, Passed: false, Description: "check for outliers"}, rows[1])
	assert.True(t, rows[3].Passed)
	assert.Equal(t, checks.EpochID, rows[5].CheckID)
}

func rawValues(s transform.Series) []float64 {
	out := make([]float64, len(s.Raw))
	for i, r := range s.Raw {
		out[i] = r.Value
	}
	return out
}

func processedValues(s transform.Series) []float64 {
	out := make([]float64, len(s.Processed))
	for i, p := range s.Processed {
		out[i] = p.Value
	}
	return out
}

func validity(s transform.Series) []int {
	out := make([]int, len(s.Processed))
	for i, p := range s.Processed {
		out[i] = p.Valid
	}
	return out
}
