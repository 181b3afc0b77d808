package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"hydroingest/internal/calibration"
	"hydroingest/internal/checks"
	"hydroingest/internal/config"
	"hydroingest/internal/fileutil"
	"hydroingest/internal/ledger"
	"hydroingest/internal/logging"
	"hydroingest/internal/metrics"
	"hydroingest/internal/ncfile"
	"hydroingest/internal/store"
	"hydroingest/internal/transform"
)

// Orchestrator runs the per-file ingestion workflow.
type Orchestrator struct {
	paths       config.Paths
	store       Store
	tracker     Tracker
	reader      ncfile.Reader
	transformer *transform.Transformer
	registry    *checks.Registry
	rules       checks.Rules
	metrics     *metrics.Metrics
	logger      *slog.Logger
	retries     int
	backoff     time.Duration
	now         func() time.Time

	// parameters already reported as lacking an outlier band
	unbanded map[string]struct{}
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithReader replaces the NetCDF reader.
func WithReader(r ncfile.Reader) Option {
	return func(o *Orchestrator) { o.reader = r }
}

// WithRegistry replaces the default check registry.
func WithRegistry(r *checks.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New constructs an orchestrator. tracker may be nil.
func New(cfg *config.Config, st Store, tracker Tracker, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		paths:    cfg.Paths,
		store:    st,
		tracker:  tracker,
		reader:   ncfile.NetCDFReader{},
		registry: checks.DefaultRegistry(),
		rules:    cfg.CheckRules(),
		logger:   logging.NewComponentLogger(logger, "ingest"),
		retries:  cfg.Store.CompensationRetries,
		backoff:  cfg.Store.CompensationBackoff(),
		now:      time.Now,
		unbanded: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.transformer = transform.New(calibration.NewResolver(st), logger, o.now)
	return o
}

// Outcome is the final disposition of one file.
type Outcome struct {
	File         string
	State        ledger.State
	Destination  string
	DeploymentID int64
	LoggerID     int64
	Sensors      int
	Err          error
}

// Report summarizes one pass over the inbound directory.
type Report struct {
	RunID       string
	Started     time.Time
	Finished    time.Time
	Interrupted bool
	Outcomes    []Outcome
}

// Count returns how many files ended in state.
func (r Report) Count(state ledger.State) int {
	n := 0
	for _, out := range r.Outcomes {
		if out.State == state {
			n++
		}
	}
	return n
}

// RunBatch processes every file currently in the inbound directory. A
// cancelled ctx stops the batch between files; a file that has started
// always runs to completion.
func (o *Orchestrator) RunBatch(ctx context.Context) (Report, error) {
	names, err := fileutil.ListFiles(o.paths.InboundDir)
	if err != nil {
		return Report{}, fmt.Errorf("list inbound files: %w", err)
	}

	report := Report{RunID: uuid.NewString(), Started: o.now()}
	ctx = logging.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, o.logger)
	if len(names) > 0 {
		logger.Info("batch started", logging.Int("files", len(names)))
	}

	for _, name := range names {
		if ctx.Err() != nil {
			report.Interrupted = true
			logging.WarnWithContext(logger, "batch interrupted", "batch_interrupted",
				logging.Int("remaining", len(names)-len(report.Outcomes)),
				logging.String(logging.FieldImpact, "remaining files stay in the inbound directory"),
			)
			break
		}
		report.Outcomes = append(report.Outcomes, o.ProcessFile(context.WithoutCancel(ctx), report.RunID, name))
	}

	report.Finished = o.now()
	o.metrics.BatchFinished(report.Finished)
	if len(report.Outcomes) > 0 {
		logger.Info("batch finished",
			logging.Int("archived", report.Count(ledger.StateArchived)),
			logging.Int("quarantined", report.Count(ledger.StateQuarantined)),
			logging.Duration("elapsed", report.Finished.Sub(report.Started)),
		)
	}
	return report, nil
}

// fileRun carries the context of one file through the workflow.
type fileRun struct {
	name         string
	path         string
	size         int64
	archiveName  string
	entryID      int64
	stage        ledger.State
	deploymentID int64
	loggerID     int64
	sensors      int
	logger       *slog.Logger
}

// ProcessFile ingests the inbound file name and moves it to the archive or
// quarantine directory. Failures never escape: they are reported on the
// returned Outcome.
func (o *Orchestrator) ProcessFile(ctx context.Context, runID, name string) Outcome {
	ctx = logging.WithFile(logging.WithRunID(ctx, runID), name)
	run := &fileRun{
		name:         name,
		path:         filepath.Join(o.paths.InboundDir, name),
		archiveName:  name,
		stage:        ledger.StatePending,
		deploymentID: store.UnknownID,
		loggerID:     store.UnknownID,
		logger:       logging.WithContext(ctx, o.logger),
	}

	info, err := os.Stat(run.path)
	if err != nil {
		logging.WarnWithContext(run.logger, "inbound file vanished before processing", "file_missing",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file skipped"),
		)
		return Outcome{File: name, DeploymentID: store.UnknownID, LoggerID: store.UnknownID, Err: err}
	}
	run.size = info.Size()
	o.begin(ctx, run, runID)

	return o.finalize(ctx, run, o.safeProcess(ctx, run))
}

// safeProcess converts a panic anywhere in the workflow into ErrUnexpected.
func (o *Orchestrator) safeProcess(ctx context.Context, run *fileRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Wrap(ErrUnexpected, string(run.stage), "", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return o.process(ctx, run)
}

func (o *Orchestrator) begin(ctx context.Context, run *fileRun, runID string) {
	if o.tracker == nil {
		return
	}
	entry, err := o.tracker.Begin(ctx, runID, run.name, run.size)
	if err != nil {
		logging.WarnWithContext(run.logger, "ledger unavailable", "ledger_begin_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file progress is not tracked"),
		)
		return
	}
	run.entryID = entry.ID
}

func (o *Orchestrator) advance(ctx context.Context, run *fileRun, to ledger.State) {
	run.stage = to
	run.logger.Debug("file state changed", logging.String(logging.FieldState, string(to)))
	if o.tracker == nil || run.entryID == 0 {
		return
	}
	if err := o.tracker.Advance(ctx, run.entryID, to); err != nil {
		logging.WarnWithContext(run.logger, "ledger update failed", "ledger_advance_failed",
			logging.String(logging.FieldState, string(to)),
			logging.Error(err),
		)
	}
}
