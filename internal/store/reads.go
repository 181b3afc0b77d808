package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"hydroingest/internal/calibration"
	"hydroingest/internal/geo"
	"hydroingest/internal/transform"
)

// ErrSensorNotFound is returned when a sensor id has no Sensor row.
var ErrSensorNotFound = errors.New("sensor not found")

// Assignment is one LoggerContainsSensor row. A zero End means the sensor is
// still mounted.
type Assignment struct {
	LoggerID int64
	SensorID int64
	Start    time.Time
	End      time.Time
}

// Covers reports whether the assignment was active for the whole window.
func (a Assignment) Covers(start, end time.Time) bool {
	if a.Start.After(start) {
		return false
	}
	return a.End.IsZero() || !a.End.Before(end)
}

// SensorInfo reads the sensor type, unit and parameter for a sensor.
func (s *Store) SensorInfo(ctx context.Context, sensorID int64) (transform.SensorInfo, error) {
	var (
		info      transform.SensorInfo
		parameter sql.NullString
		unitID    sql.NullInt64
	)
	err := s.queryRow(ctx,
		`SELECT s.sensor_type_id, st.unit_id, st.parameter
         FROM Sensor s JOIN SensorType st ON st.sensor_type_id = s.sensor_type_id
         WHERE s.sensor_id = ?`,
		sensorID,
	).Scan(&info.SensorTypeID, &unitID, &parameter)
	if errors.Is(err, sql.ErrNoRows) {
		return transform.SensorInfo{}, fmt.Errorf("sensor %d: %w", sensorID, ErrSensorNotFound)
	}
	if err != nil {
		return transform.SensorInfo{}, fmt.Errorf("read sensor %d: %w", sensorID, err)
	}
	info.UnitID = unitID.Int64
	info.Parameter = parameter.String
	return info, nil
}

// CalculationRule returns the calculation rule of the sensor's type.
func (s *Store) CalculationRule(ctx context.Context, sensorID int64) (string, error) {
	var rule sql.NullString
	err := s.queryRow(ctx,
		`SELECT st.calculation_rule
         FROM Sensor s JOIN SensorType st ON st.sensor_type_id = s.sensor_type_id
         WHERE s.sensor_id = ?`,
		sensorID,
	).Scan(&rule)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sensor %d: %w", sensorID, ErrSensorNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read calculation rule for sensor %d: %w", sensorID, err)
	}
	return rule.String, nil
}

// Coefficients returns every calibration coefficient recorded for the sensor.
func (s *Store) Coefficients(ctx context.Context, sensorID int64) ([]calibration.Coefficient, error) {
	rows, err := s.query(ctx,
		`SELECT coefficient_id_per_sensor_id, time_calibration, value
         FROM CalibrationCoefficient WHERE sensor_id = ?
         ORDER BY coefficient_id_per_sensor_id, time_calibration`,
		sensorID,
	)
	if err != nil {
		return nil, fmt.Errorf("query coefficients for sensor %d: %w", sensorID, err)
	}
	defer rows.Close()

	var out []calibration.Coefficient
	for rows.Next() {
		var (
			c       calibration.Coefficient
			rawTime sql.NullString
		)
		if err := rows.Scan(&c.Index, &rawTime, &c.Value); err != nil {
			return nil, fmt.Errorf("scan coefficient: %w", err)
		}
		if c.CalibratedAt, err = parseTimeString(rawTime.String); err != nil {
			return nil, fmt.Errorf("coefficient %d of sensor %d: %w", c.Index, sensorID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Assignments lists the sensor assignment history of a logger.
func (s *Store) Assignments(ctx context.Context, loggerID int64) ([]Assignment, error) {
	rows, err := s.query(ctx,
		`SELECT logger_id, sensor_id, time_start, time_end
         FROM LoggerContainsSensor WHERE logger_id = ? ORDER BY sensor_id, time_start`,
		loggerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments for logger %d: %w", loggerID, err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var (
			a          Assignment
			start, end sql.NullString
		)
		if err := rows.Scan(&a.LoggerID, &a.SensorID, &start, &end); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if a.Start, err = parseTimeString(start.String); err != nil {
			return nil, fmt.Errorf("assignment start of sensor %d: %w", a.SensorID, err)
		}
		if end.Valid && end.String != "" {
			if a.End, err = parseTimeString(end.String); err != nil {
				return nil, fmt.Errorf("assignment end of sensor %d: %w", a.SensorID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActiveSensors returns the sorted distinct sensors assigned to the logger for
// the whole window [start, end].
func (s *Store) ActiveSensors(ctx context.Context, loggerID int64, start, end time.Time) ([]int64, error) {
	assignments, err := s.Assignments(ctx, loggerID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(assignments))
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		if !a.Covers(start, end) {
			continue
		}
		if _, dup := seen[a.SensorID]; dup {
			continue
		}
		seen[a.SensorID] = struct{}{}
		ids = append(ids, a.SensorID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MaxProcessedValueID returns the highest processed_value_id, or 0 for an
// empty table.
func (s *Store) MaxProcessedValueID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(processed_value_id) FROM ProcessedValue`).Scan(&max); err != nil {
		return 0, fmt.Errorf("read max processed_value_id: %w", err)
	}
	return max.Int64, nil
}

// Deployment reads a deployment row back, decoding its geometry columns.
func (s *Store) Deployment(ctx context.Context, deploymentID, loggerID int64) (*transform.Deployment, error) {
	var (
		d                          transform.Deployment
		contact                    sql.NullInt64
		start, end                 sql.NullString
		posStart, posEnd, boundary sql.NullString
	)
	query := fmt.Sprintf(
		`SELECT deployment_id, logger_id, contact_id, time_start, time_end, %s, %s, %s
         FROM Deployment WHERE deployment_id = ? AND logger_id = ?`,
		s.dialect.geom("position_start"), s.dialect.geom("position_end"), s.dialect.geom("bounding_box"),
	)
	err := s.queryRow(ctx, query, deploymentID, loggerID).Scan(
		&d.DeploymentID, &d.LoggerID, &contact, &start, &end, &posStart, &posEnd, &boundary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read deployment %d/%d: %w", deploymentID, loggerID, err)
	}
	d.ContactID = contact.Int64
	if d.TimeStart, err = parseTimeString(start.String); err != nil {
		return nil, err
	}
	if d.TimeEnd, err = parseTimeString(end.String); err != nil {
		return nil, err
	}
	if d.PositionStart, err = geo.ParsePoint(posStart.String); err != nil {
		return nil, fmt.Errorf("deployment position_start: %w", err)
	}
	if d.PositionEnd, err = geo.ParsePoint(posEnd.String); err != nil {
		return nil, fmt.Errorf("deployment position_end: %w", err)
	}
	if d.BoundingBox, err = geo.ParsePolygon(boundary.String); err != nil {
		return nil, fmt.Errorf("deployment bounding_box: %w", err)
	}
	return &d, nil
}

// ProcessedValues reads the processed values with ids in [first, last].
func (s *Store) ProcessedValues(ctx context.Context, first, last int64) ([]transform.ProcessedValue, error) {
	query := fmt.Sprintf(
		`SELECT processed_value_id, command_id, unit_id, measuring_time, value, %s, pressure, valid, published
         FROM ProcessedValue WHERE processed_value_id BETWEEN ? AND ? ORDER BY processed_value_id`,
		s.dialect.geom("position"),
	)
	rows, err := s.query(ctx, query, first, last)
	if err != nil {
		return nil, fmt.Errorf("query processed values: %w", err)
	}
	defer rows.Close()

	var out []transform.ProcessedValue
	for rows.Next() {
		var (
			p        transform.ProcessedValue
			unitID   sql.NullInt64
			measured sql.NullString
			position sql.NullString
			pressure sql.NullFloat64
		)
		if err := rows.Scan(&p.ProcessedValueID, &p.CommandID, &unitID, &measured, &p.Value, &position, &pressure, &p.Valid, &p.Published); err != nil {
			return nil, fmt.Errorf("scan processed value: %w", err)
		}
		p.UnitID = unitID.Int64
		p.Pressure = pressure.Float64
		if p.MeasuringTime, err = parseTimeString(measured.String); err != nil {
			return nil, err
		}
		if p.Position, err = geo.ParsePoint(position.String); err != nil {
			return nil, fmt.Errorf("processed value %d position: %w", p.ProcessedValueID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Counts reports the number of rows in each measurement table.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(measurementTables))
	for _, table := range measurementTables {
		var n int64
		if err := s.queryRow(ctx, `SELECT COUNT(1) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Errors lists recorded ingestion errors, oldest first.
func (s *Store) Errors(ctx context.Context) ([]ErrorRecord, error) {
	rows, err := s.query(ctx, `SELECT error_id, deployment_id, logger_id, time, description, solved FROM Errors ORDER BY error_id`)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	var out []ErrorRecord
	for rows.Next() {
		var (
			rec ErrorRecord
			at  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.DeploymentID, &rec.LoggerID, &at, &rec.Description, &rec.Solved); err != nil {
			return nil, fmt.Errorf("scan error record: %w", err)
		}
		if rec.Time, err = parseTimeString(at.String); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var measurementTables = []string{
	TableDeployment,
	TableRawValue,
	TableProcessedValue,
	TableCheckAtProcessedValue,
	TableProcessedValueHasRawValue,
	TableErrors,
}

// Table names.
const (
	TableDeployment                = "Deployment"
	TableRawValue                  = "RawValue"
	TableProcessedValue            = "ProcessedValue"
	TableCheckAtProcessedValue     = "CheckAtProcessedValue"
	TableProcessedValueHasRawValue = "ProcessedValueHasRawValue"
	TableErrors                    = "Errors"
)
