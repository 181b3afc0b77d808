package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"hydroingest/internal/checks"
	"hydroingest/internal/fileutil"
	"hydroingest/internal/ledger"
	"hydroingest/internal/logging"
	"hydroingest/internal/ncfile"
	"hydroingest/internal/store"
	"hydroingest/internal/transform"
)

// plannedSeries is one sensor column ready to be written.
type plannedSeries struct {
	series  transform.Series
	results []checks.Result
}

func (o *Orchestrator) process(ctx context.Context, run *fileRun) error {
	if err := o.checkDuplicate(run); err != nil {
		return err
	}
	o.advance(ctx, run, ledger.StateDuplicateChecked)

	f, err := o.reader.Read(run.path)
	if err != nil {
		return Wrap(ErrUnexpected, string(run.stage), "read measurement file", "", err)
	}
	run.deploymentID = f.DeploymentID
	run.loggerID = f.LoggerID
	run.logger = run.logger.With(
		logging.Int64(logging.FieldDeploymentID, f.DeploymentID),
		logging.Int64(logging.FieldLoggerID, f.LoggerID),
	)
	run.logger.Info("measurement file opened",
		logging.Int("samples", f.Len()),
		logging.Int64("contact_id", f.Contact.ID),
		logging.String("vessel", f.Vessel.Name),
		logging.String("platform_id", f.PlatformID),
		logging.String("deck_unit_id", f.DeckUnitID),
	)

	if err := o.validateConfig(ctx, run, f); err != nil {
		return err
	}
	o.advance(ctx, run, ledger.StateConfigValidated)

	o.advance(ctx, run, ledger.StateSensorLoop)
	plan, err := o.plan(ctx, run, f)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		logging.WarnWithContext(run.logger, "file has no sensor columns", "no_sensor_columns",
			logging.String(logging.FieldImpact, "nothing written for this file"),
		)
		return nil
	}
	return o.write(ctx, run, f, plan)
}

// checkDuplicate compares the file against the archive. A file of the same
// name and size was already ingested. Same name with a different size is
// suspicious but processed, and archived under a timestamped name.
func (o *Orchestrator) checkDuplicate(run *fileRun) error {
	archived, exists, err := fileutil.Stat(o.paths.ArchiveDir, run.name)
	if err != nil {
		return Wrap(ErrUnexpected, string(ledger.StatePending), "inspect archive", "", err)
	}
	if !exists {
		return nil
	}
	if archived.Size() == run.size {
		logging.WarnWithContext(run.logger, "file already archived; skipping", "duplicate_file",
			logging.Int64("size", run.size),
			logging.String(logging.FieldImpact, "no rows written"),
		)
		return Wrap(ErrDuplicate, string(ledger.StatePending), "", fmt.Sprintf("%s with %d bytes is already archived", run.name, run.size), nil)
	}
	run.archiveName = o.stampedName(run.name)
	logging.WarnWithContext(run.logger, "archived file with the same name has a different size", "duplicate_suspicious",
		logging.Int64("size", run.size),
		logging.Int64("archived_size", archived.Size()),
		logging.String("archive_name", run.archiveName),
		logging.String(logging.FieldImpact, "file processed and archived under a new name"),
		logging.String(logging.FieldErrorHint, "compare both files before reconciling"),
	)
	return nil
}

// validateConfig requires the file's sensors to match the sensors assigned to
// the logger for the whole deployment.
func (o *Orchestrator) validateConfig(ctx context.Context, run *fileRun, f *ncfile.File) error {
	declared := f.SensorIDs()
	active, err := o.store.ActiveSensors(ctx, f.LoggerID, f.Deployment.Start, f.Deployment.End)
	if err != nil {
		return Wrap(ErrUnexpected, string(run.stage), "read sensor assignments", "", err)
	}
	if slices.Equal(declared, active) {
		return nil
	}
	logging.ErrorWithContext(run.logger, "sensor configuration mismatch", "config_mismatch",
		logging.String("file_sensors", fmt.Sprint(declared)),
		logging.String("store_sensors", fmt.Sprint(active)),
		logging.String(logging.FieldErrorHint, "reconcile LoggerContainsSensor with the logger configuration"),
	)
	return Wrap(ErrConfigMismatch, string(run.stage), "",
		fmt.Sprintf("file declares sensors %v, store has %v for logger %d", declared, active, f.LoggerID), nil)
}

// plan transforms and scores every sensor column before anything is written,
// so a column that cannot be transformed aborts the file without writes.
func (o *Orchestrator) plan(ctx context.Context, run *fileRun, f *ncfile.File) ([]plannedSeries, error) {
	columns := f.SensorColumns()
	plan := make([]plannedSeries, 0, len(columns))
	for _, column := range columns {
		sensorID, ok := f.SensorID(column)
		if !ok {
			continue
		}
		info, err := o.store.SensorInfo(ctx, sensorID)
		if err != nil {
			return nil, Wrap(ErrUnexpected, string(run.stage), "read sensor", fmt.Sprintf("column %s", column), err)
		}

		series, ok, err := o.transformer.Transform(ctx, f, column, info)
		if !ok {
			run.logger.Debug("column has no sensor mapping; skipped", logging.String("column", column))
			continue
		}
		if errors.Is(err, transform.ErrEmptySeries) {
			return nil, Wrap(ErrEmptySeries, string(run.stage), "transform", column, err)
		}
		if err != nil {
			return nil, Wrap(ErrUnexpected, string(run.stage), "transform", column, err)
		}
		o.metrics.Clamped(len(series.Clamped))

		eval := o.registry.Evaluate(series.Samples(), series.Parameter, o.rules)
		if len(eval.Skipped) > 0 {
			logging.WarnWithContext(run.logger, "configured checks are not registered", "check_unknown",
				logging.String("check_ids", fmt.Sprint(eval.Skipped)),
				logging.String(logging.FieldImpact, "checks skipped for this series"),
				logging.String(logging.FieldErrorHint, "fix rules.check_ids in the configuration"),
			)
		}
		if eval.MissingBand {
			o.warnMissingBand(run, series.Parameter)
		}
		if err := series.ApplyValidity(eval.Valid); err != nil {
			return nil, Wrap(ErrUnexpected, string(run.stage), "apply checks", column, err)
		}
		plan = append(plan, plannedSeries{series: series, results: eval.Results})
	}
	return plan, nil
}

// warnMissingBand reports a parameter without an outlier band once per
// orchestrator lifetime.
func (o *Orchestrator) warnMissingBand(run *fileRun, parameter string) {
	if _, seen := o.unbanded[parameter]; seen {
		return
	}
	o.unbanded[parameter] = struct{}{}
	logging.WarnWithContext(run.logger, "no outlier band configured for parameter", "outlier_band_missing",
		logging.String("parameter", parameter),
		logging.String(logging.FieldImpact, "only the outlier sentinel is checked"),
		logging.String(logging.FieldErrorHint, "add [rules.parameters."+parameter+"] to the configuration"),
	)
}

// write commits the planned series in dependency order. The first series
// also writes the Deployment row.
func (o *Orchestrator) write(ctx context.Context, run *fileRun, f *ncfile.File, plan []plannedSeries) error {
	for i := range plan {
		first := i == 0
		if first {
			dep, err := plan[i].series.Deployment(f.Contact.ID)
			if err != nil {
				return Wrap(ErrUnexpected, string(run.stage), "derive deployment", "", err)
			}
			if err := o.store.InsertDeployment(ctx, dep); err != nil {
				return Wrap(ErrStoreWrite, string(run.stage), "insert "+store.TableDeployment, "", err)
			}
			o.metrics.RowsWritten(store.TableDeployment, 1)
		}
		if err := o.writeSeries(ctx, run, &plan[i], first); err != nil {
			return err
		}
		run.sensors++
	}
	return nil
}

func (o *Orchestrator) writeSeries(ctx context.Context, run *fileRun, p *plannedSeries, first bool) error {
	s := &p.series
	scope := fmt.Sprintf("sensor %d column %s", s.SensorID, s.Column)
	logger := run.logger.With(logging.Int64(logging.FieldSensorID, s.SensorID))

	var undoDeployment []compensation
	if first {
		undoDeployment = append(undoDeployment, o.deleteDeployment(s.DeploymentID, s.LoggerID))
	}

	if err := o.store.InsertRawValues(ctx, s.Raw); err != nil {
		cause := Wrap(ErrStoreWrite, string(run.stage), "insert "+store.TableRawValue, scope, err)
		return o.compensate(ctx, logger, cause, undoDeployment...)
	}
	o.metrics.RowsWritten(store.TableRawValue, len(s.Raw))
	undoRaw := append([]compensation{o.deleteRawValues(s.DeploymentID, s.LoggerID, s.SensorID)}, undoDeployment...)

	maxID, err := o.store.MaxProcessedValueID(ctx)
	if err != nil {
		cause := Wrap(ErrUnexpected, string(run.stage), "read processed value ids", scope, err)
		return o.compensate(ctx, logger, cause, undoRaw...)
	}
	firstID, lastID := s.AssignIDs(maxID + 1)

	if err := o.store.InsertProcessedValues(ctx, s.Processed); err != nil {
		cause := Wrap(ErrStoreWrite, string(run.stage), "insert "+store.TableProcessedValue, scope, err)
		return o.compensate(ctx, logger, cause, undoRaw...)
	}
	o.metrics.RowsWritten(store.TableProcessedValue, len(s.Processed))
	undoProcessed := []compensation{
		o.deleteChecks(firstID, lastID),
		o.deleteProcessed(firstID, lastID),
	}

	checkRows := s.CheckRows(p.results, o.now().UTC())
	if err := o.store.InsertChecks(ctx, checkRows); err != nil {
		cause := Wrap(ErrStoreWrite, string(run.stage), "insert "+store.TableCheckAtProcessedValue, scope, err)
		return o.compensate(ctx, logger, cause, undoProcessed...)
	}
	o.metrics.RowsWritten(store.TableCheckAtProcessedValue, len(checkRows))

	links := s.Links()
	if err := o.store.InsertLinks(ctx, links); err != nil {
		cause := Wrap(ErrStoreWrite, string(run.stage), "insert "+store.TableProcessedValueHasRawValue, scope, err)
		return o.compensate(ctx, logger, cause, undoProcessed...)
	}
	o.metrics.RowsWritten(store.TableProcessedValueHasRawValue, len(links))

	logger.Info("sensor series written",
		logging.String("column", s.Column),
		logging.Int("rows", s.Len()),
		logging.Int64("first_processed_value_id", firstID),
		logging.Int64("last_processed_value_id", lastID),
		logging.Bool("calibrated", s.Calibrated),
	)
	return nil
}
