// Package config loads, normalizes, and validates hydroingest configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, loads an optional .env file next to the config, and honours the
// HYDROINGEST_DSN environment fallback for the store connection string. The
// quality-check rule set is exported as an immutable value through Rules so
// the check engine never reads process-wide state.
package config
