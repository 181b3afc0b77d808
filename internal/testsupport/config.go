package testsupport

import (
	"path/filepath"
	"testing"

	"hydroingest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test
// and a SQLite store under the same root.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InboundDir = filepath.Join(base, "inbound")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.QuarantineDir = filepath.Join(base, "quarantine")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "state", "ledger.db")
	cfgVal.Store.Driver = config.DriverSQLite
	cfgVal.Store.DSN = filepath.Join(base, "hydroingest.db")
	cfgVal.Store.CompensationBackoffMS = 1
	cfgVal.Workflow.MetricsBind = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBand sets the outlier band of a parameter type.
func WithBand(parameter string, low, high float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rules.Parameters[parameter] = config.ParameterBand{OutlierLow: low, OutlierHigh: high}
	}
}

// WithCheckIDs replaces the active check list.
func WithCheckIDs(ids ...int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rules.CheckIDs = append([]int(nil), ids...)
	}
}

// WithCompensationRetries sets how often a compensating delete is retried.
func WithCompensationRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.CompensationRetries = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InboundDir)
}
