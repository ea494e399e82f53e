package cursor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasksync/internal/ir"
)

func TestEncode(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("X", -3600))
	rec := ir.Record{
		"id":              ir.IRInt(4),
		"update_datetime": ir.NewIRTime(ts),
		"sender":          ir.IRString("bob"),
		"canceled":        ir.IRBool(false),
	}

	c, err := Encode(rec, []ir.OrderKey{"update_datetime", "-sender"})
	require.NoError(t, err)

	assert.Equal(t, ir.Cursor{
		"update_datetime": ir.IRString("2024-01-01T13:00:00.000000Z"),
		"-sender":         ir.IRString("bob"),
	}, c)
}

func TestEncodeEmptyOrder(t *testing.T) {
	c, err := Encode(ir.Record{"id": ir.IRInt(1)}, nil)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		rec  ir.Record
		want error
	}{
		{"missing field", ir.Record{"id": ir.IRInt(1)}, ErrMissingField},
		{"null value", ir.Record{"sender": ir.IRNull{}}, ErrUnorderable},
		{"float value", ir.Record{"sender": ir.IRFloat(1)}, ErrUnorderable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.rec, []ir.OrderKey{"-sender"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}
