package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hydroingest/internal/calibration"
	"hydroingest/internal/geo"
	"hydroingest/internal/transform"
)

// UnknownID stands in for a deployment or logger id that could not be read.
const UnknownID = -9999

// ErrorRecord is one row of the Errors table.
type ErrorRecord struct {
	ID           int64
	DeploymentID int64
	LoggerID     int64
	Time         time.Time
	Description  string
	Solved       int
}

// InsertDeployment writes the deployment row.
func (s *Store) InsertDeployment(ctx context.Context, d transform.Deployment) error {
	g := s.dialect.geomIn
	query := `INSERT INTO Deployment (
            deployment_id, logger_id, contact_id, time_start, time_end,
            position_start, position_end, bounding_box
        ) VALUES (?, ?, ?, ?, ?, ` + g + `, ` + g + `, ` + g + `)`
	_, err := s.exec(ctx, query,
		d.DeploymentID,
		d.LoggerID,
		nullableID(d.ContactID),
		s.dialect.timeArg(d.TimeStart),
		s.dialect.timeArg(d.TimeEnd),
		geo.EncodePoint(d.PositionStart),
		geo.EncodePoint(d.PositionEnd),
		geo.EncodePolygon(d.BoundingBox),
	)
	if err != nil {
		return fmt.Errorf("insert deployment %d/%d: %w", d.DeploymentID, d.LoggerID, err)
	}
	return nil
}

// InsertRawValues writes rows as one batch.
func (s *Store) InsertRawValues(ctx context.Context, rows []transform.RawValue) error {
	query := `INSERT INTO RawValue (
            raw_value_id, deployment_id, logger_id, sensor_id, measuring_time,
            measuring_location, value, pressure
        ) VALUES (?, ?, ?, ?, ?, ` + s.dialect.geomIn + `, ?, ?)`
	return s.batch(ctx, TableRawValue, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.RawValueID, r.DeploymentID, r.LoggerID, r.SensorID,
			s.dialect.timeArg(r.MeasuringTime),
			geo.EncodePoint(r.Location),
			r.Value, r.Pressure,
		}
	})
}

// InsertProcessedValues writes rows as one batch. Ids must already be
// assigned.
func (s *Store) InsertProcessedValues(ctx context.Context, rows []transform.ProcessedValue) error {
	for _, p := range rows {
		if p.ProcessedValueID == 0 {
			return fmt.Errorf("insert %s: processed_value_id not assigned", TableProcessedValue)
		}
	}
	query := `INSERT INTO ProcessedValue (
            processed_value_id, command_id, unit_id, measuring_time, processing_time,
            value, sensor_settling_time, position, pressure, valid, published
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ` + s.dialect.geomIn + `, ?, ?, ?)`
	return s.batch(ctx, TableProcessedValue, query, len(rows), func(i int) []any {
		p := rows[i]
		return []any{
			p.ProcessedValueID, p.CommandID, nullableID(p.UnitID),
			s.dialect.timeArg(p.MeasuringTime),
			s.dialect.timeArg(p.ProcessingTime),
			p.Value, p.SensorSettlingTime,
			geo.EncodePoint(p.Position),
			p.Pressure, p.Valid, p.Published,
		}
	})
}

// InsertChecks writes check outcomes as one batch.
func (s *Store) InsertChecks(ctx context.Context, rows []transform.CheckRow) error {
	query := `INSERT INTO CheckAtProcessedValue (
            check_id, processed_value_id, time, passed, description
        ) VALUES (?, ?, ?, ?, ?)`
	return s.batch(ctx, TableCheckAtProcessedValue, query, len(rows), func(i int) []any {
		c := rows[i]
		return []any{c.CheckID, c.ProcessedValueID, s.dialect.timeArg(c.Time), passedText(c.Passed), c.Description}
	})
}

// InsertLinks writes processed-to-raw links as one batch.
func (s *Store) InsertLinks(ctx context.Context, rows []transform.Link) error {
	query := `INSERT INTO ProcessedValueHasRawValue (
            processed_value_id, raw_value_id, deployment_id, logger_id, sensor_id
        ) VALUES (?, ?, ?, ?, ?)`
	return s.batch(ctx, TableProcessedValueHasRawValue, query, len(rows), func(i int) []any {
		l := rows[i]
		return []any{l.ProcessedValueID, l.RawValueID, l.DeploymentID, l.LoggerID, l.SensorID}
	})
}

// InsertError records an ingestion failure. Solved is always written as 0.
func (s *Store) InsertError(ctx context.Context, rec ErrorRecord) error {
	at := rec.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO Errors (deployment_id, logger_id, time, description, solved) VALUES (?, ?, ?, ?, 0)`,
		rec.DeploymentID, rec.LoggerID, s.dialect.timeArg(at), strings.TrimSpace(rec.Description),
	)
	if err != nil {
		return fmt.Errorf("insert error record: %w", err)
	}
	return nil
}

// SensorType is a reference row describing a kind of sensor.
type SensorType struct {
	ID              int64
	Name            string
	Parameter       string
	UnitID          int64
	CalculationRule string
}

// InsertSensorType adds a sensor type.
func (s *Store) InsertSensorType(ctx context.Context, st SensorType) error {
	_, err := s.exec(ctx,
		`INSERT INTO SensorType (sensor_type_id, name, parameter, unit_id, calculation_rule) VALUES (?, ?, ?, ?, ?)`,
		st.ID, nullableString(st.Name), st.Parameter, st.UnitID, nullableString(st.CalculationRule),
	)
	if err != nil {
		return fmt.Errorf("insert sensor type %d: %w", st.ID, err)
	}
	return nil
}

// InsertSensor adds a sensor of the given type.
func (s *Store) InsertSensor(ctx context.Context, sensorID, sensorTypeID int64) error {
	_, err := s.exec(ctx, `INSERT INTO Sensor (sensor_id, sensor_type_id) VALUES (?, ?)`, sensorID, sensorTypeID)
	if err != nil {
		return fmt.Errorf("insert sensor %d: %w", sensorID, err)
	}
	return nil
}

// InsertAssignment records that a sensor was mounted on a logger. A zero End
// is stored as NULL.
func (s *Store) InsertAssignment(ctx context.Context, a Assignment) error {
	var end any
	if !a.End.IsZero() {
		end = s.dialect.timeArg(a.End)
	}
	_, err := s.exec(ctx,
		`INSERT INTO LoggerContainsSensor (logger_id, sensor_id, time_start, time_end) VALUES (?, ?, ?, ?)`,
		a.LoggerID, a.SensorID, s.dialect.timeArg(a.Start), end,
	)
	if err != nil {
		return fmt.Errorf("insert assignment of sensor %d to logger %d: %w", a.SensorID, a.LoggerID, err)
	}
	return nil
}

// InsertCoefficient adds a calibration coefficient for a sensor.
func (s *Store) InsertCoefficient(ctx context.Context, sensorID int64, c calibration.Coefficient) error {
	_, err := s.exec(ctx,
		`INSERT INTO CalibrationCoefficient (sensor_id, coefficient_id_per_sensor_id, time_calibration, value) VALUES (?, ?, ?, ?)`,
		sensorID, c.Index, s.dialect.timeArg(c.CalibratedAt), c.Value,
	)
	if err != nil {
		return fmt.Errorf("insert coefficient %d of sensor %d: %w", c.Index, sensorID, err)
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
