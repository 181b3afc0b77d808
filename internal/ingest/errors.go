package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome markers. Every error returned by the per-file workflow wraps
// exactly one of these so the failure class can be recovered with errors.Is.
var (
	ErrDuplicate      = errors.New("duplicate file")
	ErrConfigMismatch = errors.New("sensor configuration mismatch")
	ErrEmptySeries    = errors.New("empty series")
	ErrStoreWrite     = errors.New("store write failed")
	ErrCompensation   = errors.New("compensation failed")
	ErrUnexpected     = errors.New("unexpected failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with marker for later classification.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrUnexpected
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Reason names the failure class of err for logs and the ledger.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCompensation):
		return "compensation_failed"
	case errors.Is(err, ErrStoreWrite):
		return "store_write"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrConfigMismatch):
		return "config_mismatch"
	case errors.Is(err, ErrEmptySeries):
		return "empty_series"
	default:
		return "unexpected"
	}
}

// Unexpected reports whether err falls outside the anticipated failure
// classes. Such failures are also recorded in the store's Errors table.
func Unexpected(err error) bool {
	return err != nil && Reason(err) == "unexpected"
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "ingest failure"
	}
	return strings.Join(parts, ": ")
}
