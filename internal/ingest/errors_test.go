package ingest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrStoreWrite, "sensor_loop", "insert RawValue", "sensor 5", cause)

	require.ErrorIs(t, err, ErrStoreWrite)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "store write failed: sensor_loop: insert RawValue: sensor 5: disk full", err.Error())
}

func TestWrapDefaults(t *testing.T) {
	err := Wrap(nil, " ", "", "", nil)
	require.ErrorIs(t, err, ErrUnexpected)
	assert.Equal(t, "unexpected failure: ingest failure", err.Error())
}

func TestReason(t *testing.T) {
	write := Wrap(ErrStoreWrite, "sensor_loop", "insert", "", nil)
	comp := Wrap(ErrCompensation, "compensation", "delete", "", nil)

	cases := map[string]error{
		"ok":                  nil,
		"duplicate":           Wrap(ErrDuplicate, "pending", "", "", nil),
		"config_mismatch":     fmt.Errorf("outer: %w", Wrap(ErrConfigMismatch, "", "", "", nil)),
		"empty_series":        Wrap(ErrEmptySeries, "", "", "", nil),
		"store_write":         write,
		"compensation_failed": errors.Join(write, comp),
		"unexpected":          errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Reason(err), "error %v", err)
	}
	assert.True(t, Unexpected(errors.New("boom")))
	assert.False(t, Unexpected(write))
	assert.False(t, Unexpected(nil))
}
