package ledger

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry        Entry
		state        string
		deploymentID sql.NullInt64
		loggerID     sql.NullInt64
		detail       sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.FileName,
		&entry.FileSize,
		&state,
		&deploymentID,
		&loggerID,
		&detail,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	entry.State = State(state)
	entry.DeploymentID = deploymentID.Int64
	entry.LoggerID = loggerID.Int64
	entry.Detail = detail.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
