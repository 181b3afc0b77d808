package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hydroingest/internal/config"
)

// Store manages reads and writes against the measurement database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Options selects the database to open.
type Options struct {
	Driver  string
	DSN     string
	Migrate bool
}

// Open connects using the [store] section of cfg.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: config is nil")
	}
	return OpenWith(ctx, Options{
		Driver:  cfg.Store.Driver,
		DSN:     cfg.Store.DSN,
		Migrate: cfg.Store.ShouldMigrate(),
	})
}

// OpenWith connects to the database described by opts and, when requested,
// applies the embedded schema for the dialect.
func OpenWith(ctx context.Context, opts Options) (*Store, error) {
	d, err := lookupDialect(strings.ToLower(strings.TrimSpace(opts.Driver)))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("store: dsn is empty")
	}

	db, err := sql.Open(d.driver, d.dsn(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.name, err)
	}
	if d.name == config.DriverSQLite {
		// One writer; pragmas are per connection.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if opts.Migrate {
		if err := s.applyMigrations(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s store: %w", s.dialect.name, err)
	}
	return nil
}

// Driver reports the dialect in use.
func (s *Store) Driver() string {
	return s.dialect.name
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// batch executes query once per row inside one transaction.
func (s *Store) batch(ctx context.Context, label, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s batch: %w", label, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(query))
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", label, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", label, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s batch: %w", label, err)
	}
	return nil
}
