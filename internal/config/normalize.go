package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeRules()
	c.normalizeLogging()
	c.Workflow.MetricsBind = strings.TrimSpace(c.Workflow.MetricsBind)
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.inbound_dir", &c.Paths.InboundDir},
		{"paths.archive_dir", &c.Paths.ArchiveDir},
		{"paths.quarantine_dir", &c.Paths.QuarantineDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.ledger_path", &c.Paths.LedgerPath},
	}
	for _, f := range fields {
		expanded, err := expandPath(strings.TrimSpace(*f.value))
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = expanded
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", "sqlite3":
		c.Store.Driver = DriverSQLite
	case "mariadb":
		c.Store.Driver = DriverMySQL
	case "postgres", "postgresql":
		c.Store.Driver = DriverPgx
	}
	if value, ok := os.LookupEnv(dsnEnvVar); ok && strings.TrimSpace(value) != "" {
		c.Store.DSN = value
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.Driver == DriverSQLite && c.Store.DSN != "" && !strings.HasPrefix(c.Store.DSN, "file:") && c.Store.DSN != ":memory:" {
		expanded, err := expandPath(c.Store.DSN)
		if err != nil {
			return fmt.Errorf("store.dsn: %w", err)
		}
		c.Store.DSN = expanded
	}
	return nil
}

func (c *Config) normalizeRules() {
	if len(c.Rules.Parameters) == 0 {
		return
	}
	normalized := make(map[string]ParameterBand, len(c.Rules.Parameters))
	for name, band := range c.Rules.Parameters {
		normalized[strings.TrimSpace(name)] = band
	}
	c.Rules.Parameters = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
