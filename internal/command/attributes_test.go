package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesTypedAccessors(t *testing.T) {
	attrs := NewAttributes(map[string]Value{
		"owner":   StringValue("ops"),
		"limit":   IntValue(5),
		"enabled": BoolValue(true),
		"tags":    ListValue("a", "b"),
	})

	owner, ok := attrs.String("owner")
	assert.True(t, ok)
	assert.Equal(t, "ops", owner)

	limit, ok := attrs.Int("limit")
	assert.True(t, ok)
	assert.Equal(t, int64(5), limit)

	enabled, ok := attrs.Bool("enabled")
	assert.True(t, ok)
	assert.True(t, enabled)

	tags, ok := attrs.List("tags")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, tags)

	_, ok = attrs.Int("owner")
	assert.False(t, ok, "kind mismatch")
	_, ok = attrs.String("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"enabled", "limit", "owner", "tags"}, attrs.Keys())
}

func TestAttributesMutation(t *testing.T) {
	attrs := NewAttributes(nil)
	attrs.Set("x", IntValue(1))
	snap := attrs.Snapshot()
	attrs.Set("x", IntValue(2))
	attrs.Delete("missing")

	assert.Equal(t, int64(1), snap["x"].Any())
	n, _ := attrs.Int("x")
	assert.Equal(t, int64(2), n)

	attrs.Delete("x")
	_, ok := attrs.Get("x")
	assert.False(t, ok)
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		kind ValueKind
	}{
		{"s", KindString},
		{true, KindBool},
		{7, KindInt},
		{int64(7), KindInt},
		{[]string{"a"}, KindList},
		{[]any{"a", "b"}, KindList},
	}
	for _, tt := range tests {
		v, err := ValueOf(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.kind, v.Kind())
	}

	_, err := ValueOf(3.5)
	assert.Error(t, err)
	_, err = ValueOf([]any{"a", 1})
	assert.Error(t, err)
}

func TestValueMarshalJSON(t *testing.T) {
	raw, err := json.Marshal(map[string]Value{"n": IntValue(3), "l": ListValue("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3,"l":["x"]}`, string(raw))
}
