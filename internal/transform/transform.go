// Package transform turns one sensor column of a measurement file into the
// raw and processed row sets written to the store.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"hydroingest/internal/calibration"
	"hydroingest/internal/checks"
	"hydroingest/internal/geo"
	"hydroingest/internal/logging"
	"hydroingest/internal/ncfile"
)

const (
	// CommandUnattended marks values processed on the logger side.
	CommandUnattended = -666
	// ClampSentinel replaces values outside [ClampLow, ClampHigh].
	ClampSentinel = -9999
	ClampLow      = -1e12
	ClampHigh     = 1e13
	// SensorSettlingTime is recorded on every processed value.
	SensorSettlingTime = 1
)

// ErrEmptySeries is returned when no sample survives missing-value filtering.
var ErrEmptySeries = errors.New("no samples left after dropping missing values")

// SensorInfo is the store-side description of a sensor.
type SensorInfo struct {
	SensorTypeID int64
	UnitID       int64
	Parameter    string
}

// RawValue is one physical sample.
type RawValue struct {
	RawValueID    int64
	DeploymentID  int64
	SensorID      int64
	LoggerID      int64
	MeasuringTime time.Time
	Location      geo.Position
	Value         float64
	Pressure      float64
}

// ProcessedValue is one calibrated sample. ProcessedValueID is zero until
// AssignIDs is called.
type ProcessedValue struct {
	ProcessedValueID   int64
	RawValueID         int64
	CommandID          int64
	UnitID             int64
	MeasuringTime      time.Time
	ProcessingTime     time.Time
	Value              float64
	SensorSettlingTime int
	Position           geo.Position
	Pressure           float64
	Valid              int
	Published          int
}

// Deployment is the row describing one logger deployment.
type Deployment struct {
	DeploymentID  int64
	LoggerID      int64
	ContactID     int64
	TimeStart     time.Time
	TimeEnd       time.Time
	PositionStart geo.Position
	PositionEnd   geo.Position
	BoundingBox   geo.Ring
}

// CheckRow is one check outcome for one processed value.
type CheckRow struct {
	CheckID          int
	ProcessedValueID int64
	Time             time.Time
	Passed           bool
	Description      string
}

// Link joins a processed value to the raw value it was derived from.
type Link struct {
	ProcessedValueID int64
	RawValueID       int64
	DeploymentID     int64
	LoggerID         int64
	SensorID         int64
}

// Clamp records a value replaced by ClampSentinel.
type Clamp struct {
	Index     int
	Original  float64
	Processed bool
}

// Series is the transformed output for one sensor column. Raw and Processed
// have the same length and Processed[i] derives from Raw[i].
type Series struct {
	Column       string
	SensorID     int64
	DeploymentID int64
	LoggerID     int64
	Parameter    string
	UsedRaw      bool
	Calibrated   bool
	Raw          []RawValue
	Processed    []ProcessedValue
	Clamped      []Clamp
}

// Len is the number of surviving samples.
func (s *Series) Len() int { return len(s.Raw) }

// Samples returns the processed values in check-engine form.
func (s *Series) Samples() []checks.Sample {
	out := make([]checks.Sample, len(s.Processed))
	for i, p := range s.Processed {
		out[i] = checks.Sample{Time: p.MeasuringTime, Value: p.Value}
	}
	return out
}

// AssignIDs numbers the processed values first, first+1, ... in row order and
// returns the inclusive id range.
func (s *Series) AssignIDs(first int64) (int64, int64) {
	for i := range s.Processed {
		s.Processed[i].ProcessedValueID = first + int64(i)
	}
	return first, first + int64(len(s.Processed)) - 1
}

// ApplyValidity combines the check mask with the validity already set on the
// processed values. A row invalidated by clamping stays invalid.
func (s *Series) ApplyValidity(valid []int) error {
	if len(valid) != len(s.Processed) {
		return fmt.Errorf("validity mask has %d entries for %d samples", len(valid), len(s.Processed))
	}
	for i := range s.Processed {
		if valid[i] == 0 {
			s.Processed[i].Valid = 0
		}
	}
	return nil
}

// CheckRows expands check results into one row per check and processed
// value. AssignIDs must have been called.
func (s *Series) CheckRows(results []checks.Result, at time.Time) []CheckRow {
	rows := make([]CheckRow, 0, len(results)*len(s.Processed))
	for _, res := range results {
		for i, p := range s.Processed {
			rows = append(rows, CheckRow{
				CheckID:          res.CheckID,
				ProcessedValueID: p.ProcessedValueID,
				Time:             at,
				Passed:           i < len(res.Mask) && res.Mask[i] == 1,
				Description:      res.Description,
			})
		}
	}
	return rows
}

// Links pairs every processed value with its raw value.
func (s *Series) Links() []Link {
	links := make([]Link, len(s.Processed))
	for i, p := range s.Processed {
		links[i] = Link{
			ProcessedValueID: p.ProcessedValueID,
			RawValueID:       p.RawValueID,
			DeploymentID:     s.DeploymentID,
			LoggerID:         s.LoggerID,
			SensorID:         s.SensorID,
		}
	}
	return links
}

// Deployment derives the deployment row from the series: first and last
// sample time and position, and the bounding ring of all positions.
func (s *Series) Deployment(contactID int64) (Deployment, error) {
	if len(s.Raw) == 0 {
		return Deployment{}, ErrEmptySeries
	}
	positions := make([]geo.Position, len(s.Raw))
	for i, r := range s.Raw {
		positions[i] = r.Location
	}
	ring, err := geo.BoundingRing(positions)
	if err != nil {
		return Deployment{}, err
	}
	first, last := s.Raw[0], s.Raw[len(s.Raw)-1]
	return Deployment{
		DeploymentID:  s.DeploymentID,
		LoggerID:      s.LoggerID,
		ContactID:     contactID,
		TimeStart:     first.MeasuringTime,
		TimeEnd:       last.MeasuringTime,
		PositionStart: first.Location,
		PositionEnd:   last.Location,
		BoundingBox:   ring,
	}, nil
}

// Resolver supplies calibration formulas.
type Resolver interface {
	Resolve(ctx context.Context, sensorID int64, cutoff time.Time) (calibration.Formula, error)
}

// Transformer builds Series from measurement files.
type Transformer struct {
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Transformer. now may be nil.
func New(resolver Resolver, logger *slog.Logger, now func() time.Time) *Transformer {
	if now == nil {
		now = time.Now
	}
	return &Transformer{
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "transform"),
		now:      now,
	}
}

// Transform converts one column. It reports false when the column carries no
// sensor mapping; such columns are skipped by callers. The "_raw" variant is
// preferred and calibrated; when it is absent, or no calibration is
// available, the column's own values serve as both raw and processed values.
func (t *Transformer) Transform(ctx context.Context, f *ncfile.File, column string, info SensorInfo) (Series, bool, error) {
	sensorID, ok := f.SensorID(column)
	if !ok {
		return Series{}, false, nil
	}
	own, _ := f.Variable(column)
	logger := logging.WithContext(ctx, t.logger).With(
		logging.String("column", column),
		logging.Int64(logging.FieldSensorID, sensorID),
	)

	series := Series{
		Column:       column,
		SensorID:     sensorID,
		DeploymentID: f.DeploymentID,
		LoggerID:     f.LoggerID,
		Parameter:    info.Parameter,
	}

	rawValues := own.Values
	convert := func(v float64) float64 { return v }
	if rawVar, ok := f.Variable(column + ncfile.RawSuffix); ok {
		formula, err := t.resolver.Resolve(ctx, sensorID, f.Deployment.End)
		switch {
		case err == nil:
			rawValues = rawVar.Values
			convert = formula.Apply
			series.UsedRaw = true
			series.Calibrated = true
		case errors.Is(err, calibration.ErrNoCalibration):
			logging.WarnWithContext(logger, "no calibration available; using uncalibrated column", "calibration_missing",
				logging.Error(err),
				logging.String(logging.FieldImpact, "processed values equal the stored column values"),
				logging.String(logging.FieldErrorHint, "check CalibrationCoefficient and SensorType.calculation_rule"),
			)
		default:
			return Series{}, true, fmt.Errorf("resolve calibration for sensor %d: %w", sensorID, err)
		}
	}

	processingTime := t.now().UTC()
	for i := 0; i < f.Len(); i++ {
		pos := f.Position(i)
		value := rawValues[i]
		pressure := f.Pressure[i]
		if math.IsNaN(value) || math.IsNaN(pressure) || !pos.Valid() || f.Time[i].IsZero() {
			continue
		}
		idx := len(series.Raw)

		// a clamped raw value has no meaningful calibration: the processed
		// row carries the sentinel too and is never valid
		stored, processed, valid := value, 0.0, 1
		if out, clamped := clamp(value); clamped {
			series.Clamped = append(series.Clamped, Clamp{Index: idx, Original: value})
			stored, processed, valid = out, out, 0
		} else {
			processed = convert(value)
			if out, clamped := clamp(processed); clamped {
				series.Clamped = append(series.Clamped, Clamp{Index: idx, Original: processed, Processed: true})
				processed = out
			}
		}

		series.Raw = append(series.Raw, RawValue{
			RawValueID:    int64(idx),
			DeploymentID:  f.DeploymentID,
			SensorID:      sensorID,
			LoggerID:      f.LoggerID,
			MeasuringTime: f.Time[i],
			Location:      pos,
			Value:         stored,
			Pressure:      pressure,
		})
		series.Processed = append(series.Processed, ProcessedValue{
			RawValueID:         int64(idx),
			CommandID:          CommandUnattended,
			UnitID:             info.UnitID,
			MeasuringTime:      f.Time[i],
			ProcessingTime:     processingTime,
			Value:              processed,
			SensorSettlingTime: SensorSettlingTime,
			Position:           pos,
			Pressure:           pressure,
			Valid:              valid,
		})
	}

	for _, c := range series.Clamped {
		table := "RawValue"
		if c.Processed {
			table = "ProcessedValue"
		}
		logging.WarnWithContext(logger, "out of range value replaced", "value_clamped",
			logging.String("table", table),
			logging.Int("index", c.Index),
			logging.Float64("original", c.Original),
			logging.Int("stored", ClampSentinel),
			logging.String(logging.FieldImpact, "value stored as sentinel"),
		)
	}

	if len(series.Raw) == 0 {
		return series, true, fmt.Errorf("column %s: %w", column, ErrEmptySeries)
	}
	return series, true, nil
}

// clamp maps values outside the plausible range to ClampSentinel.
func clamp(v float64) (float64, bool) {
	if v < ClampLow || v > ClampHigh || math.IsInf(v, 0) || math.IsNaN(v) {
		return ClampSentinel, true
	}
	return v, false
}
