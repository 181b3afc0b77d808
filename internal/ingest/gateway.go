package ingest

import (
	"context"
	"time"

	"hydroingest/internal/calibration"
	"hydroingest/internal/ledger"
	"hydroingest/internal/store"
	"hydroingest/internal/transform"
)

// Store is the persistence surface the orchestrator reads and writes
// through. *store.Store implements it.
type Store interface {
	calibration.Source

	SensorInfo(ctx context.Context, sensorID int64) (transform.SensorInfo, error)
	ActiveSensors(ctx context.Context, loggerID int64, start, end time.Time) ([]int64, error)
	MaxProcessedValueID(ctx context.Context) (int64, error)

	InsertDeployment(ctx context.Context, d transform.Deployment) error
	InsertRawValues(ctx context.Context, rows []transform.RawValue) error
	InsertProcessedValues(ctx context.Context, rows []transform.ProcessedValue) error
	InsertChecks(ctx context.Context, rows []transform.CheckRow) error
	InsertLinks(ctx context.Context, rows []transform.Link) error
	InsertError(ctx context.Context, rec store.ErrorRecord) error

	DeleteDeployment(ctx context.Context, deploymentID, loggerID int64) (int64, error)
	DeleteRawValues(ctx context.Context, deploymentID, loggerID, sensorID int64) (int64, error)
	DeleteProcessedRange(ctx context.Context, first, last int64) (int64, error)
	DeleteChecksRange(ctx context.Context, first, last int64) (int64, error)
}

// Tracker records per-file progress. *ledger.Ledger implements it.
type Tracker interface {
	Begin(ctx context.Context, runID, fileName string, size int64) (*ledger.Entry, error)
	Advance(ctx context.Context, id int64, to ledger.State) error
	Finish(ctx context.Context, id int64, to ledger.State, deploymentID, loggerID int64, detail string) error
}

var (
	_ Store   = (*store.Store)(nil)
	_ Tracker = (*ledger.Ledger)(nil)
)
