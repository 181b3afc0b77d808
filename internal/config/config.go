package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"hydroingest/internal/checks"
)

//go:embed sample_config.toml
var sampleConfig string

// Supported store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverPgx    = "pgx"
)

// Paths contains the directories the ingester reads from and writes to.
type Paths struct {
	InboundDir    string `toml:"inbound_dir"`
	ArchiveDir    string `toml:"archive_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	LogDir        string `toml:"log_dir"`
	LedgerPath    string `toml:"ledger_path"`
}

// Store configures the relational measurement store.
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
	// Migrate applies the embedded schema on open. Unset means "only for sqlite".
	Migrate               *bool `toml:"migrate"`
	CompensationRetries   int   `toml:"compensation_retries"`
	CompensationBackoffMS int   `toml:"compensation_backoff_ms"`
}

// ShouldMigrate reports whether the embedded schema is applied on open.
func (s Store) ShouldMigrate() bool {
	if s.Migrate != nil {
		return *s.Migrate
	}
	return s.Driver == DriverSQLite
}

// CompensationBackoff is the initial delay between compensating delete attempts.
func (s Store) CompensationBackoff() time.Duration {
	return time.Duration(s.CompensationBackoffMS) * time.Millisecond
}

// ParameterBand is the accepted value range for one parameter type.
type ParameterBand struct {
	OutlierLow  float64 `toml:"outlier_low"`
	OutlierHigh float64 `toml:"outlier_high"`
}

// Rules configures the quality checks.
type Rules struct {
	OutlierSentinel  float64                  `toml:"outlier_sentinel"`
	MinMeasuringTime time.Time                `toml:"min_measuring_time"`
	CheckIDs         []int                    `toml:"check_ids"`
	Parameters       map[string]ParameterBand `toml:"parameters"`
}

// Workflow contains timing for watch mode.
type Workflow struct {
	PollInterval int    `toml:"poll_interval"`
	MetricsBind  string `toml:"metrics_bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for hydroingest.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Store    Store    `toml:"store"`
	Rules    Rules    `toml:"rules"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPathLiteral)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. A .env file in the config directory or
// the working directory is loaded first; it never overrides variables that are
// already set.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(configDir string) error {
	candidates := []string{filepath.Join(configDir, dotEnvFile), dotEnvFile}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigFile)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the inbound, archive, quarantine, log and ledger
// directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.InboundDir, c.Paths.ArchiveDir, c.Paths.QuarantineDir, c.Paths.LogDir, filepath.Dir(c.Paths.LedgerPath)}
	if c.Store.Driver == DriverSQLite {
		dirs = append(dirs, filepath.Dir(c.Store.DSN))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file guarding the inbound directory.
func (c *Config) LockPath() string {
	return filepath.Join(filepath.Dir(c.Paths.LedgerPath), "hydroingest.lock")
}

// PollInterval returns the watch-mode poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// CheckRules returns the immutable rule set handed to the check engine.
func (c *Config) CheckRules() checks.Rules {
	bands := make(map[string]checks.Band, len(c.Rules.Parameters))
	for name, band := range c.Rules.Parameters {
		bands[name] = checks.Band{Low: band.OutlierLow, High: band.OutlierHigh}
	}
	return checks.NewRules(c.Rules.OutlierSentinel, c.Rules.MinMeasuringTime, c.Rules.CheckIDs, bands)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
