// Package logging builds the structured slog loggers used by hydroingest.
//
// Console output is either a human-readable line format or JSON. Every run
// also appends to a daily ingestion journal under the configured log
// directory (one "<YYYY-MM-DD>.txt" file per day) so that each file's outcome
// can be reconciled later without access to the console. Context helpers tag
// lines with the current run and measurement file.
package logging
