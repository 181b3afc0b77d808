package store

import (
	"context"
	"fmt"
)

// DeleteDeployment removes the deployment row written for a file.
func (s *Store) DeleteDeployment(ctx context.Context, deploymentID, loggerID int64) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM Deployment WHERE deployment_id = ? AND logger_id = ?`, deploymentID, loggerID)
	if err != nil {
		return 0, fmt.Errorf("delete deployment %d/%d: %w", deploymentID, loggerID, err)
	}
	return res.RowsAffected()
}

// DeleteRawValues removes the raw values one sensor contributed to a
// deployment.
func (s *Store) DeleteRawValues(ctx context.Context, deploymentID, loggerID, sensorID int64) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM RawValue WHERE deployment_id = ? AND logger_id = ? AND sensor_id = ?`,
		deploymentID, loggerID, sensorID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete raw values of sensor %d: %w", sensorID, err)
	}
	return res.RowsAffected()
}

// DeleteProcessedRange removes processed values with ids in [first, last].
func (s *Store) DeleteProcessedRange(ctx context.Context, first, last int64) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM ProcessedValue WHERE processed_value_id BETWEEN ? AND ?`, first, last)
	if err != nil {
		return 0, fmt.Errorf("delete processed values %d..%d: %w", first, last, err)
	}
	return res.RowsAffected()
}

// DeleteChecksRange removes check outcomes for processed ids in [first, last].
func (s *Store) DeleteChecksRange(ctx context.Context, first, last int64) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM CheckAtProcessedValue WHERE processed_value_id BETWEEN ? AND ?`, first, last)
	if err != nil {
		return 0, fmt.Errorf("delete checks for %d..%d: %w", first, last, err)
	}
	return res.RowsAffected()
}
