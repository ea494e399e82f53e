package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorEqualAcrossPersistence(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := Cursor{"update_datetime": NewIRTime(ts), "-sender": IRString("bob")}

	data, err := json.Marshal(fresh)
	require.NoError(t, err)

	var stored Cursor
	require.NoError(t, json.Unmarshal(data, &stored))

	assert.True(t, fresh.Equal(stored))
	assert.True(t, stored.Equal(fresh))
	assert.IsType(t, IRString(""), stored["update_datetime"])
}

func TestCursorEqual(t *testing.T) {
	a := Cursor{"id": IRInt(1)}

	assert.True(t, Cursor{}.Equal(nil))
	assert.False(t, a.Equal(Cursor{"id": IRInt(2)}))
	assert.False(t, a.Equal(Cursor{"pk": IRInt(1)}))
	assert.False(t, a.Equal(Cursor{"id": IRInt(1), "x": IRInt(1)}))
	assert.False(t, a.Equal(Cursor{"id": IRString("1")}))
}

func TestCursorCloneIsIndependent(t *testing.T) {
	a := Cursor{"id": IRInt(1)}
	b := a.Clone()
	b["id"] = IRInt(2)

	assert.Equal(t, IRInt(1), a["id"])
	assert.NotNil(t, Cursor(nil).Clone())
	assert.True(t, Cursor(nil).IsEmpty())
}

func TestCursorString(t *testing.T) {
	c := Cursor{"b": IRInt(2), "a": IRString("x")}
	assert.Equal(t, `{a="x", b=2}`, c.String())
}
