package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateRules(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	named := map[string]string{
		"paths.inbound_dir":    c.Paths.InboundDir,
		"paths.archive_dir":    c.Paths.ArchiveDir,
		"paths.quarantine_dir": c.Paths.QuarantineDir,
	}
	seen := make(map[string]string, len(named))
	for key, dir := range named {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if other, dup := seen[dir]; dup {
			return fmt.Errorf("%s and %s must be different directories", other, key)
		}
		seen[dir] = key
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		return errors.New("paths.ledger_path must be set")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverMySQL, DriverPgx:
	default:
		return fmt.Errorf("store.driver: unsupported value %q (want sqlite, mysql or pgx)", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required; set it in the config or via %s", dsnEnvVar)
	}
	if c.Store.CompensationRetries < 0 {
		return errors.New("store.compensation_retries must be >= 0")
	}
	if c.Store.CompensationBackoffMS < 0 {
		return errors.New("store.compensation_backoff_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateRules() error {
	seen := make(map[int]struct{}, len(c.Rules.CheckIDs))
	for _, id := range c.Rules.CheckIDs {
		if id >= 0 {
			return fmt.Errorf("rules.check_ids: check id %d must be negative", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("rules.check_ids: check id %d listed twice", id)
		}
		seen[id] = struct{}{}
	}
	for name, band := range c.Rules.Parameters {
		if name == "" {
			return errors.New("rules.parameters: empty parameter name")
		}
		if band.OutlierLow > band.OutlierHigh {
			return fmt.Errorf("rules.parameters.%s: outlier_low %g exceeds outlier_high %g", name, band.OutlierLow, band.OutlierHigh)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.MetricsBind != "" {
		if _, _, err := net.SplitHostPort(c.Workflow.MetricsBind); err != nil {
			return fmt.Errorf("workflow.metrics_bind: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
