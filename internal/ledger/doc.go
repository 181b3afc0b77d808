// Package ledger records the outcome of every measurement file the ingester
// touches in a local SQLite database.
//
// Each attempt gets one row that walks the orchestrator states
// pending, duplicate_checked, config_validated and sensor_loop before ending
// in archived or quarantined. The ledger is bookkeeping for operators; the
// measurement store and the archive/quarantine directories stay the source
// of truth.
package ledger
