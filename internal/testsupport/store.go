package testsupport

import (
	"context"
	"testing"
	"time"

	"hydroingest/internal/calibration"
	"hydroingest/internal/config"
	"hydroingest/internal/ledger"
	"hydroingest/internal/store"
)

// MustOpenStore opens the measurement store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// MustOpenLedger opens the ingestion ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Ledger {
	t.Helper()

	l, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
	})
	return l
}

// Sensor describes a sensor to seed together with its type.
type Sensor struct {
	ID        int64
	TypeID    int64
	Parameter string
	UnitID    int64
	Rule      string
}

// SeedSensors inserts the sensor types and sensors. Types shared between
// sensors are inserted once.
func SeedSensors(t testing.TB, s *store.Store, sensors ...Sensor) {
	t.Helper()

	ctx := context.Background()
	seenTypes := make(map[int64]struct{})
	for _, sensor := range sensors {
		typeID := sensor.TypeID
		if typeID == 0 {
			typeID = sensor.ID
		}
		if _, ok := seenTypes[typeID]; !ok {
			seenTypes[typeID] = struct{}{}
			if err := s.InsertSensorType(ctx, store.SensorType{
				ID:              typeID,
				Name:            sensor.Parameter,
				Parameter:       sensor.Parameter,
				UnitID:          sensor.UnitID,
				CalculationRule: sensor.Rule,
			}); err != nil {
				t.Fatalf("seed sensor type: %v", err)
			}
		}
		if err := s.InsertSensor(ctx, sensor.ID, typeID); err != nil {
			t.Fatalf("seed sensor: %v", err)
		}
	}
}

// Assign mounts sensors on a logger from start onward. A zero end leaves the
// assignment open.
func Assign(t testing.TB, s *store.Store, loggerID int64, start, end time.Time, sensorIDs ...int64) {
	t.Helper()

	for _, id := range sensorIDs {
		if err := s.InsertAssignment(context.Background(), store.Assignment{
			LoggerID: loggerID,
			SensorID: id,
			Start:    start,
			End:      end,
		}); err != nil {
			t.Fatalf("seed assignment: %v", err)
		}
	}
}

// SeedCoefficients inserts calibration coefficients for a sensor.
func SeedCoefficients(t testing.TB, s *store.Store, sensorID int64, coefficients ...calibration.Coefficient) {
	t.Helper()

	for _, c := range coefficients {
		if err := s.InsertCoefficient(context.Background(), sensorID, c); err != nil {
			t.Fatalf("seed coefficient: %v", err)
		}
	}
}
