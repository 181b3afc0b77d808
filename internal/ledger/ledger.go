package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"hydroingest/internal/config"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const entryColumns = "id, run_id, file_name, file_size, state, deployment_id, logger_id, detail, created_at, updated_at"

// Ledger persists ingestion attempts.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens the ledger at cfg.Paths.LedgerPath.
func Open(cfg *config.Config) (*Ledger, error) {
	if cfg == nil {
		return nil, errors.New("ledger: config is nil")
	}
	return OpenPath(cfg.Paths.LedgerPath)
}

// OpenPath opens or creates a ledger database and applies migrations.
func OpenPath(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	l := &Ledger{db: db, path: path}
	if err := l.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file location.
func (l *Ledger) Path() string {
	return l.path
}

// Begin records a new attempt in the pending state.
func (l *Ledger) Begin(ctx context.Context, runID, fileName string, size int64) (*Entry, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := l.db.ExecContext(ctx,
			`INSERT INTO ingest_files (run_id, file_name, file_size, state, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			runID, fileName, size, StatePending, now, now,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("begin ledger entry for %s: %w", fileName, err)
	}
	return l.Get(ctx, id)
}

// Advance moves an entry to the next workflow state.
func (l *Ledger) Advance(ctx context.Context, id int64, to State) error {
	return l.transition(ctx, id, to, nil)
}

// Finish moves an entry to a terminal state and records the deployment
// context and a detail message.
func (l *Ledger) Finish(ctx context.Context, id int64, to State, deploymentID, loggerID int64, detail string) error {
	if !to.Terminal() {
		return fmt.Errorf("ledger finish: %s is not a terminal state", to)
	}
	return l.transition(ctx, id, to, &finish{deploymentID: deploymentID, loggerID: loggerID, detail: detail})
}

type finish struct {
	deploymentID int64
	loggerID     int64
	detail       string
}

func (l *Ledger) transition(ctx context.Context, id int64, to State, fin *finish) error {
	entry, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("ledger entry %d not found", id)
	}
	if !canTransition(entry.State, to) {
		return &TransitionError{From: entry.State, To: to}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		var err error
		if fin == nil {
			_, err = l.db.ExecContext(ctx,
				`UPDATE ingest_files SET state = ?, updated_at = ? WHERE id = ?`,
				to, now, id,
			)
		} else {
			_, err = l.db.ExecContext(ctx,
				`UPDATE ingest_files
                 SET state = ?, deployment_id = ?, logger_id = ?, detail = ?, updated_at = ?
                 WHERE id = ?`,
				to, fin.deploymentID, fin.loggerID, nullableString(fin.detail), now, id,
			)
		}
		if err != nil {
			return fmt.Errorf("update ledger entry %d: %w", id, err)
		}
		return nil
	})
}

// Get fetches an entry by id. A missing entry returns nil without error.
func (l *Ledger) Get(ctx context.Context, id int64) (*Entry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ingest_files WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return entry, nil
}

// List returns entries in the given states, or all entries, oldest first.
func (l *Ledger) List(ctx context.Context, states ...State) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ingest_files`
	args := make([]any, len(states))
	if len(states) > 0 {
		for i, st := range states {
			args[i] = st
		}
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
	}
	query += ` ORDER BY id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns a count of entries grouped by state.
func (l *Ledger) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM ingest_files GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var (
			state State
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Summarize aggregates Stats into in-flight and terminal totals.
func (l *Ledger) Summarize(ctx context.Context) (Summary, error) {
	stats, err := l.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for state, count := range stats {
		sum.Total += count
		switch state {
		case StateArchived:
			sum.Archived += count
		case StateQuarantined:
			sum.Quarantined += count
		default:
			sum.InFlight += count
		}
	}
	return sum, nil
}

// AbandonInFlight quarantines entries left non-terminal by an interrupted
// run and returns how many were closed.
func (l *Ledger) AbandonInFlight(ctx context.Context, detail string) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := l.db.ExecContext(ctx,
			`UPDATE ingest_files SET state = ?, detail = ?, updated_at = ?
             WHERE state NOT IN (?, ?)`,
			StateQuarantined, detail, time.Now().UTC().Format(time.RFC3339Nano),
			StateArchived, StateQuarantined,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("abandon in-flight entries: %w", err)
	}
	return affected, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(busyRetryInitialBackoff),
		backoff.WithMaxInterval(busyRetryMaxBackoff),
	)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isSQLiteBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, busyRetryAttempts-1), ctx))
}
