// Package ingest drives measurement files from the inbound directory into the
// store.
//
// Each file moves through pending, duplicate_checked, config_validated and
// sensor_loop before it is archived or quarantined. Store writes follow the
// dependency order Deployment, RawValue, ProcessedValue,
// CheckAtProcessedValue, ProcessedValueHasRawValue. A failed write is undone
// with compensating deletes, each retried with backoff, and the file is
// quarantined. Files are processed one at a time in directory listing order.
package ingest
