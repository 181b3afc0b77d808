package config

import "time"

const (
	defaultInboundDir          = "~/.local/share/hydroingest/inbound"
	defaultArchiveDir          = "~/.local/share/hydroingest/archive"
	defaultQuarantineDir       = "~/.local/share/hydroingest/quarantine"
	defaultLogDir              = "~/.local/share/hydroingest/logs"
	defaultLedgerPath          = "~/.local/share/hydroingest/ledger.db"
	defaultStoreDriver         = DriverSQLite
	defaultStoreDSN            = "~/.local/share/hydroingest/hydroingest.db"
	defaultCompensationRetries = 3
	defaultCompensationBackoff = 500
	defaultOutlierSentinel     = -999
	defaultPollInterval        = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 90
	defaultOutlierCheckID      = -101
	defaultEpochCheckID        = -102
	dsnEnvVar                  = "HYDROINGEST_DSN"
	dotEnvFile                 = ".env"
	defaultConfigPathLiteral   = "~/.config/hydroingest/config.toml"
	projectConfigFile          = "hydroingest.toml"
)

var defaultMinMeasuringTime = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboundDir:    defaultInboundDir,
			ArchiveDir:    defaultArchiveDir,
			QuarantineDir: defaultQuarantineDir,
			LogDir:        defaultLogDir,
			LedgerPath:    defaultLedgerPath,
		},
		Store: Store{
			Driver:                defaultStoreDriver,
			DSN:                   defaultStoreDSN,
			CompensationRetries:   defaultCompensationRetries,
			CompensationBackoffMS: defaultCompensationBackoff,
		},
		Rules: Rules{
			OutlierSentinel:  defaultOutlierSentinel,
			MinMeasuringTime: defaultMinMeasuringTime,
			CheckIDs:         []int{defaultOutlierCheckID, defaultEpochCheckID},
			Parameters: map[string]ParameterBand{
				"temperature": {OutlierLow: -5, OutlierHigh: 40},
				"salinity":    {OutlierLow: 0, OutlierHigh: 45},
				"pressure":    {OutlierLow: 0, OutlierHigh: 12000},
				"oxygen":      {OutlierLow: 0, OutlierHigh: 500},
			},
		},
		Workflow: Workflow{
			PollInterval: defaultPollInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
