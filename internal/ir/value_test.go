package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name     string
		input    any
		expected IRValue
	}{
		{"nil", nil, IRNull{}},
		{"string", "x", IRString("x")},
		{"bytes", []byte("raw"), IRString("raw")},
		{"int", 3, IRInt(3)},
		{"int64", int64(-4), IRInt(-4)},
		{"bool", true, IRBool(true)},
		{"float", 2.5, IRFloat(2.5)},
		{"already ir", IRInt(9), IRInt(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}

	t.Run("time is normalized to UTC", func(t *testing.T) {
		v, err := FromGo(ts)
		require.NoError(t, err)
		irt, ok := v.(IRTime)
		require.True(t, ok)
		assert.Equal(t, "2024-05-06T06:08:09.000000Z", CanonicalTime(irt.Time()))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := FromGo([]int{1})
		require.Error(t, err)
	})
}

func TestToGo(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123000, time.UTC)

	v, err := ToGo(NewIRTime(ts))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06T07:08:09.000123Z", v, "timestamps bind as canonical strings")

	v, err = ToGo(IRNull{})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ToGo(IRBool(true))
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestIsCursorKind(t *testing.T) {
	assert.True(t, IsCursorKind(IRString("a")))
	assert.True(t, IsCursorKind(IRInt(1)))
	assert.True(t, IsCursorKind(IRBool(false)))
	assert.True(t, IsCursorKind(NewIRTime(time.Now())))
	assert.False(t, IsCursorKind(IRNull{}))
	assert.False(t, IsCursorKind(IRFloat(1)))
	assert.False(t, IsCursorKind(nil))
}

func TestIRObjectJSON(t *testing.T) {
	var obj IRObject
	require.NoError(t, json.Unmarshal([]byte(`{"canceled":false,"n":3,"s":"x","z":null}`), &obj))
	assert.Equal(t, IRObject{
		"canceled": IRBool(false),
		"n":        IRInt(3),
		"s":        IRString("x"),
		"z":        IRNull{},
	}, obj)

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"canceled":false,"n":3,"s":"x","z":null}`, string(out))
}

func TestIRObjectUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"float", `{"a":1.5}`},
		{"nested object", `{"a":{"b":1}}`},
		{"array", `{"a":[1]}`},
		{"not an object", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var obj IRObject
			require.Error(t, json.Unmarshal([]byte(tt.input), &obj))
		})
	}
}
