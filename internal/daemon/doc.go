// Package daemon owns the lifecycle of an ingestion process.
//
// It enforces single-instance execution with a flock on the state directory,
// marks ledger entries left in flight by a crashed run, prunes old journals,
// and either runs one batch or polls the inbound directory until cancelled.
// The metrics endpoint is served only while watching.
package daemon
