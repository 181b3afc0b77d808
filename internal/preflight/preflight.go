package preflight

import (
	"context"

	"hydroingest/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger reports whether the measurement store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every preflight check for cfg. The store check is skipped
// when store is nil.
func RunAll(ctx context.Context, cfg *config.Config, store Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Inbound directory", cfg.Paths.InboundDir),
		CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir),
		CheckDirectoryAccess("Quarantine directory", cfg.Paths.QuarantineDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckParentAccess("Ledger", cfg.Paths.LedgerPath),
	}
	if store != nil {
		results = append(results, CheckStore(ctx, cfg.Store.Driver, store))
	}
	if cfg.Workflow.MetricsBind != "" {
		results = append(results, CheckListenAddress("Metrics endpoint", cfg.Workflow.MetricsBind))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
