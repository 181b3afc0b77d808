package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hydroingest/internal/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("HYDROINGEST_DSN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "hydroingest", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "hydroingest", "inbound"); cfg.Paths.InboundDir != want {
		t.Fatalf("inbound dir = %q, want %q", cfg.Paths.InboundDir, want)
	}
	if cfg.Store.Driver != config.DriverSQLite || !filepath.IsAbs(cfg.Store.DSN) {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if !cfg.Store.ShouldMigrate() {
		t.Fatal("expected sqlite store to migrate by default")
	}
	if got := cfg.CheckRules().CheckIDs(); len(got) != 2 || got[0] != -101 || got[1] != -102 {
		t.Fatalf("unexpected default check ids %v", got)
	}
	if cfg.PollInterval() != time.Minute {
		t.Fatalf("poll interval = %v", cfg.PollInterval())
	}
}

func TestLoadCustomRules(t *testing.T) {
	t.Setenv("HYDROINGEST_DSN", "")
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[paths]
inbound_dir = "`+filepath.Join(dir, "in")+`"
archive_dir = "`+filepath.Join(dir, "written")+`"
quarantine_dir = "`+filepath.Join(dir, "problematic")+`"
log_dir = "`+filepath.Join(dir, "logs")+`"
ledger_path = "`+filepath.Join(dir, "ledger.db")+`"

[store]
driver = "MariaDB"
dsn = "user:pw@tcp(db:3306)/hyfive?parseTime=true"

[rules]
outlier_sentinel = -1.0
min_measuring_time = 2000-01-01T00:00:00Z
check_ids = [-101]

[rules.parameters.Conductivity]
outlier_low = 1.0
outlier_high = 2.0
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if cfg.Store.Driver != config.DriverMySQL {
		t.Fatalf("driver = %q, want mysql", cfg.Store.Driver)
	}
	if cfg.Store.ShouldMigrate() {
		t.Fatal("mysql store should not migrate unless asked")
	}
	rules := cfg.CheckRules()
	if rules.Sentinel() != -1 {
		t.Fatalf("sentinel = %v", rules.Sentinel())
	}
	if !rules.MinMeasuringTime().Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("min measuring time = %v", rules.MinMeasuringTime())
	}
	band, ok := rules.Band("conductivity")
	if !ok || band.Low != 1 || band.High != 2 {
		t.Fatalf("conductivity band = %+v, %v", band, ok)
	}
	if _, ok := rules.Band("temperature"); !ok {
		t.Fatal("expected default temperature band to survive a partial override")
	}
}

func TestDSNFromDotEnv(t *testing.T) {
	t.Setenv("HYDROINGEST_DSN", "")
	os.Unsetenv("HYDROINGEST_DSN")
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HYDROINGEST_DSN=postgres://u:p@db/hyfive\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "[store]\ndriver = \"postgres\"\n")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Driver != config.DriverPgx {
		t.Fatalf("driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.DSN != "postgres://u:p@db/hyfive" {
		t.Fatalf("dsn = %q", cfg.Store.DSN)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*config.Config){
		"shared archive":  func(c *config.Config) { c.Paths.ArchiveDir = c.Paths.InboundDir },
		"driver":          func(c *config.Config) { c.Store.Driver = "oracle" },
		"empty dsn":       func(c *config.Config) { c.Store.DSN = "" },
		"positive check":  func(c *config.Config) { c.Rules.CheckIDs = []int{101} },
		"duplicate check": func(c *config.Config) { c.Rules.CheckIDs = []int{-101, -101} },
		"inverted band": func(c *config.Config) {
			c.Rules.Parameters = map[string]config.ParameterBand{"x": {OutlierLow: 2, OutlierHigh: 1}}
		},
		"poll interval": func(c *config.Config) { c.Workflow.PollInterval = 0 },
		"metrics bind":  func(c *config.Config) { c.Workflow.MetricsBind = "nonsense" },
		"log format":    func(c *config.Config) { c.Logging.Format = "xml" },
		"retries":       func(c *config.Config) { c.Store.CompensationRetries = -1 },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("HYDROINGEST_DSN", "")
	path := filepath.Join(tempHome, "cfg", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !exists || !strings.HasPrefix(cfg.Paths.ArchiveDir, tempHome) {
		t.Fatalf("unexpected archive dir %q", cfg.Paths.ArchiveDir)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InboundDir, cfg.Paths.QuarantineDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
