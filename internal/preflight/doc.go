// Package preflight provides readiness checks for the filesystem paths, the
// measurement store and the metrics listener an ingestion run depends on.
//
// The CLI "preflight" command prints every result; "run" and "watch" refuse
// to start when a check fails.
package preflight
