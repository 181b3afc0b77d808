package main

import (
	"context"
	"fmt"
	"io"

	"hydroingest/internal/daemon"
	"hydroingest/internal/ingest"
	"hydroingest/internal/metrics"
	"hydroingest/internal/preflight"
)

// newDaemon wires store, ledger, orchestrator and metrics for run and watch.
func (c *commandContext) newDaemon(ctx context.Context, out io.Writer, skipPreflight bool) (*daemon.Daemon, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if !skipPreflight {
		results := preflight.RunAll(ctx, cfg, st)
		if preflight.Failed(results) {
			printPreflight(out, results)
			return nil, fmt.Errorf("preflight failed")
		}
	}
	l, err := c.openLedger()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	orch := ingest.New(cfg, st, l, logger, ingest.WithMetrics(m))
	return daemon.New(cfg, orch, l, m, logger)
}
