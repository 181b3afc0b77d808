package ingest

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/google/uuid"

	"hydroingest/internal/fileutil"
	"hydroingest/internal/ledger"
	"hydroingest/internal/logging"
	"hydroingest/internal/store"
)

// finalize moves the file out of the inbound directory and records the
// outcome. A failed archive move is treated like any other failure.
func (o *Orchestrator) finalize(ctx context.Context, run *fileRun, procErr error) Outcome {
	out := Outcome{
		File:         run.name,
		DeploymentID: run.deploymentID,
		LoggerID:     run.loggerID,
		Sensors:      run.sensors,
	}

	if procErr == nil {
		dst, err := o.moveUnique(run.path, o.paths.ArchiveDir, run.archiveName)
		if err != nil {
			procErr = Wrap(ErrUnexpected, "finalize", "archive file", "", err)
		} else {
			out.State = ledger.StateArchived
			out.Destination = dst
			o.finish(ctx, run, ledger.StateArchived, "")
			o.metrics.FileFinished(string(ledger.StateArchived))
			run.logger.Info("file archived",
				logging.String("destination", dst),
				logging.Int("sensors", run.sensors),
			)
			return out
		}
	}

	out.Err = procErr
	out.State = ledger.StateQuarantined
	reason := Reason(procErr)
	logging.ErrorWithContext(run.logger, "file quarantined", "file_quarantined",
		logging.String("reason", reason),
		logging.Int64(logging.FieldDeploymentID, run.deploymentID),
		logging.Int64(logging.FieldLoggerID, run.loggerID),
		logging.Error(procErr),
		logging.String(logging.FieldErrorHint, "reconcile the file manually, then move it back to the inbound directory"),
	)

	if Unexpected(procErr) {
		rec := store.ErrorRecord{
			DeploymentID: run.deploymentID,
			LoggerID:     run.loggerID,
			Time:         o.now(),
			Description:  procErr.Error(),
		}
		if err := o.store.InsertError(ctx, rec); err != nil {
			logging.ErrorWithContext(run.logger, "could not record error in store", "error_record_failed",
				logging.Error(err),
			)
		}
	}

	if dst, err := o.quarantine(run); err != nil {
		logging.ErrorWithContext(run.logger, "could not move file to quarantine", "quarantine_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file left in the inbound directory"),
		)
	} else {
		out.Destination = dst
	}
	o.finish(ctx, run, ledger.StateQuarantined, reason+": "+procErr.Error())
	o.metrics.FileFinished(string(ledger.StateQuarantined))
	return out
}

// quarantine moves the file to the quarantine directory.
func (o *Orchestrator) quarantine(run *fileRun) (string, error) {
	return o.moveUnique(run.path, o.paths.QuarantineDir, run.name)
}

// moveUnique moves src into dir as name, or under a stamped name when name
// is already taken there.
func (o *Orchestrator) moveUnique(src, dir, name string) (string, error) {
	dst := filepath.Join(dir, name)
	err := fileutil.Move(src, dst)
	if errors.Is(err, fileutil.ErrExists) {
		dst = filepath.Join(dir, o.stampedName(name))
		err = fileutil.Move(src, dst)
	}
	return dst, err
}

// stampedName tags name with the current time and a random suffix so that
// files stamped within the same millisecond stay distinct.
func (o *Orchestrator) stampedName(name string) string {
	return fileutil.StampedName(name, o.now(), uuid.NewString()[:8])
}

func (o *Orchestrator) finish(ctx context.Context, run *fileRun, state ledger.State, detail string) {
	if o.tracker == nil || run.entryID == 0 {
		return
	}
	if err := o.tracker.Finish(ctx, run.entryID, state, run.deploymentID, run.loggerID, detail); err != nil {
		logging.WarnWithContext(run.logger, "ledger update failed", "ledger_finish_failed",
			logging.String(logging.FieldState, string(state)),
			logging.Error(err),
		)
	}
}
