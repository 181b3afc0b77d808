package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"hydroingest/internal/config"
	"hydroingest/internal/ingest"
	"hydroingest/internal/logging"
	"hydroingest/internal/metrics"
)

const defaultPollInterval = 30 * time.Second

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another hydroingest instance is already running")

// Batcher runs one pass over the inbound directory.
type Batcher interface {
	RunBatch(ctx context.Context) (ingest.Report, error)
}

// Recoverer closes ledger entries left open by an interrupted process.
type Recoverer interface {
	AbandonInFlight(ctx context.Context, detail string) (int64, error)
}

// Daemon coordinates batch runs and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	batcher   Batcher
	recoverer Recoverer
	metrics   *metrics.Metrics
	logger    *slog.Logger

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	mu       sync.Mutex
	last     *ingest.Report
	batches  int
	lastErr  error
	interval time.Duration
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	Batches      int
	LastReport   *ingest.Report
	LastError    error
}

// New constructs a daemon. recoverer and m may be nil.
func New(cfg *config.Config, batcher Batcher, recoverer Recoverer, m *metrics.Metrics, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || batcher == nil {
		return nil, errors.New("daemon requires config and batcher")
	}
	lockPath := cfg.LockPath()
	interval := cfg.PollInterval()
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Daemon{
		cfg:       cfg,
		batcher:   batcher,
		recoverer: recoverer,
		metrics:   m,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		interval:  interval,
	}, nil
}

// acquire takes the instance lock and prepares the state for a run.
func (d *Daemon) acquire(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	d.running.Store(true)

	if d.recoverer != nil {
		n, err := d.recoverer.AbandonInFlight(ctx, "interrupted before completion")
		if err != nil {
			logging.WarnWithContext(d.logger, "could not close interrupted ledger entries", "ledger_recovery_failed",
				logging.Error(err),
			)
		} else if n > 0 {
			logging.WarnWithContext(d.logger, "closed ledger entries left by an interrupted run", "ledger_recovered",
				logging.Int64("entries", n),
				logging.String(logging.FieldImpact, "files from the interrupted run are retried from the inbound directory"),
			)
		}
	}
	if removed := logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: logging.JournalPattern,
	}); removed > 0 {
		d.logger.Info("old journals pruned", logging.Int("removed", removed))
	}
	return nil
}

func (d *Daemon) release() {
	if !d.running.Load() {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release instance lock", "lock_release_failed", logging.Error(err))
	}
	d.running.Store(false)
}

// RunOnce processes the inbound directory once while holding the lock.
func (d *Daemon) RunOnce(ctx context.Context) (ingest.Report, error) {
	if err := d.acquire(ctx); err != nil {
		return ingest.Report{}, err
	}
	defer d.release()
	return d.batch(ctx)
}

// Watch polls the inbound directory every poll interval until ctx is
// cancelled. A batch in progress finishes its current file first.
func (d *Daemon) Watch(ctx context.Context) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if bind := d.cfg.Workflow.MetricsBind; bind != "" && d.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.metrics.Serve(ctx, bind, d.logger); err != nil {
				logging.ErrorWithContext(d.logger, "metrics endpoint stopped", "metrics_failed",
					logging.String("bind", bind),
					logging.Error(err),
				)
			}
		}()
	}
	defer wg.Wait()

	d.logger.Info("watching inbound directory",
		logging.String("inbound_dir", d.cfg.Paths.InboundDir),
		logging.Duration("poll_interval", d.interval),
		logging.String("lock", d.lockPath),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if _, err := d.batch(ctx); err != nil {
			logging.ErrorWithContext(d.logger, "batch failed", "batch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inbound_dir permissions"),
			)
		}
		select {
		case <-ctx.Done():
			d.logger.Info("watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Daemon) batch(ctx context.Context) (ingest.Report, error) {
	report, err := d.batcher.RunBatch(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches++
	d.lastErr = err
	if err == nil {
		d.last = &report
	}
	return report, err
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		Batches:      d.batches,
		LastReport:   d.last,
		LastError:    d.lastErr,
	}
}
