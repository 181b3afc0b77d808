package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"hydroingest/internal/logging"
	"hydroingest/internal/store"
)

// compensation is one delete that undoes an earlier successful write.
type compensation struct {
	table string
	scope string
	run   func(ctx context.Context) (int64, error)
}

func (o *Orchestrator) deleteDeployment(deploymentID, loggerID int64) compensation {
	return compensation{
		table: store.TableDeployment,
		scope: fmt.Sprintf("deployment %d logger %d", deploymentID, loggerID),
		run: func(ctx context.Context) (int64, error) {
			return o.store.DeleteDeployment(ctx, deploymentID, loggerID)
		},
	}
}

func (o *Orchestrator) deleteRawValues(deploymentID, loggerID, sensorID int64) compensation {
	return compensation{
		table: store.TableRawValue,
		scope: fmt.Sprintf("deployment %d logger %d sensor %d", deploymentID, loggerID, sensorID),
		run: func(ctx context.Context) (int64, error) {
			return o.store.DeleteRawValues(ctx, deploymentID, loggerID, sensorID)
		},
	}
}

func (o *Orchestrator) deleteProcessed(first, last int64) compensation {
	return compensation{
		table: store.TableProcessedValue,
		scope: fmt.Sprintf("processed_value_id %d..%d", first, last),
		run: func(ctx context.Context) (int64, error) {
			return o.store.DeleteProcessedRange(ctx, first, last)
		},
	}
}

func (o *Orchestrator) deleteChecks(first, last int64) compensation {
	return compensation{
		table: store.TableCheckAtProcessedValue,
		scope: fmt.Sprintf("processed_value_id %d..%d", first, last),
		run: func(ctx context.Context) (int64, error) {
			return o.store.DeleteChecksRange(ctx, first, last)
		},
	}
}

// compensate runs steps in order after cause. Every step is attempted even
// when an earlier one fails. The returned error always wraps cause, and also
// ErrCompensation when any step could not be applied.
func (o *Orchestrator) compensate(ctx context.Context, logger *slog.Logger, cause error, steps ...compensation) error {
	if len(steps) == 0 {
		return cause
	}
	logger.Warn("write failed; compensating",
		logging.String(logging.FieldEventType, "compensation_started"),
		logging.Error(cause),
		logging.Int("steps", len(steps)),
	)

	var failures []error
	for _, step := range steps {
		var deleted int64
		attempts := 0
		err := o.retry(ctx, func() error {
			attempts++
			n, err := step.run(ctx)
			if err != nil {
				return err
			}
			deleted = n
			return nil
		})
		o.metrics.Compensation(step.table, err == nil)
		if err != nil {
			logging.ErrorWithContext(logger, "compensating delete failed", "compensation_failed",
				logging.String("table", step.table),
				logging.String("scope", step.scope),
				logging.Int("attempts", attempts),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the listed rows manually before re-ingesting the file"),
			)
			failures = append(failures, Wrap(ErrCompensation, "compensation", "delete "+step.table, step.scope, err))
			continue
		}
		logger.Info("compensating delete applied",
			logging.String(logging.FieldEventType, "compensation_applied"),
			logging.String("table", step.table),
			logging.String("scope", step.scope),
			logging.Int64("rows", deleted),
		)
	}
	if len(failures) == 0 {
		return cause
	}
	return errors.Join(append([]error{cause}, failures...)...)
}

// retry runs op until it succeeds or the configured retries are spent.
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(o.backoff),
		backoff.WithMaxInterval(8*o.backoff),
		backoff.WithMaxElapsedTime(0),
	)
	retries := o.retries
	if retries < 0 {
		retries = 0
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
}
