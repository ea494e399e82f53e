package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Message(t *testing.T) {
	err := NewStallError("stock", 1, `{update_datetime="2024-01-01T00:00:00.000000Z"}`)

	assert.Contains(t, err.Error(), "PROGRESS_STALL")
	assert.Contains(t, err.Error(), "task=stock")
	assert.Equal(t, "1", err.Details["batch_size"])
}

func TestRuntimeError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewConfigurationError("stock", "bad", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestRuntimeError_PredicatesSeeThroughWrapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"configuration", NewConfigurationError("t", "m", nil), IsConfigurationError},
		{"inconsistent", NewInconsistentHandlerError("t", 3), IsInconsistentHandlerError},
		{"stall", NewStallError("t", 1, "{}"), IsStallError},
		{"cycle", NewCycleError([]string{"a", "b", "a"}), IsCycleError},
		{"locked", NewLockedError("t"), IsLockedError},
		{"quota", NewQuotaError(11, 10), IsQuotaError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("run: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(errors.New("other")))
		})
	}
}

func TestRuntimeError_PredicatesDistinguishCodes(t *testing.T) {
	assert.False(t, IsStallError(NewConfigurationError("t", "m", nil)))
	assert.False(t, IsConfigurationError(NewStallError("t", 1, "{}")))
}

func TestQuotaEnforcer(t *testing.T) {
	q := newQuotaEnforcer(2)
	assert.NoError(t, q.Check())
	assert.NoError(t, q.Check())
	assert.True(t, IsQuotaError(q.Check()))

	unlimited := newQuotaEnforcer(0)
	for i := 0; i < 10; i++ {
		assert.NoError(t, unlimited.Check())
	}
}
