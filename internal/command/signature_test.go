package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignatureOptionalArgument(t *testing.T) {
	sig, err := ParseSignature("ban", "ban <user> [reason]")
	require.NoError(t, err)
	require.Len(t, sig.Arguments(), 2)

	assert.True(t, sig.Match([]string{"alice"}))
	assert.Equal(t, Args{"user": "alice"}, sig.Bind([]string{"alice"}))

	assert.True(t, sig.Match([]string{"alice", "rude"}))
	assert.Equal(t, Args{"user": "alice", "reason": "rude"}, sig.Bind([]string{"alice", "rude"}))

	// an optional non-rest slot captures exactly one token
	assert.False(t, sig.Match([]string{"alice", "being", "rude"}))
	assert.False(t, sig.Match(nil))
}

func TestParseSignatureRequiredRest(t *testing.T) {
	sig, err := ParseSignature("kick", "kick {target}")
	require.NoError(t, err)

	assert.True(t, sig.Match([]string{"a", "b", "c"}))
	assert.Equal(t, Args{"target": "a b c"}, sig.Bind([]string{"a", "b", "c"}))
	assert.False(t, sig.Match(nil))
}

func TestParseSignatureRestAfterRequired(t *testing.T) {
	sig, err := ParseSignature("msg", "<to> {text}")
	require.NoError(t, err)

	assert.False(t, sig.Match([]string{"bob"}))
	assert.True(t, sig.Match([]string{"bob", "hi", "there"}))
	assert.Equal(t, Args{"to": "bob", "text": "hi there"}, sig.Bind([]string{"bob", "hi", "there"}))
}

func TestParseSignatureOptionalRestFirst(t *testing.T) {
	sig, err := ParseSignature("echo", "(text)")
	require.NoError(t, err)

	assert.True(t, sig.Match(nil))
	assert.True(t, sig.Match([]string{"hello", "world"}))
	assert.Equal(t, Args{}, sig.Bind(nil))
	assert.Equal(t, Args{"text": "hello world"}, sig.Bind([]string{"hello", "world"}))
}

func TestParseSignatureLiterals(t *testing.T) {
	sig, err := ParseSignature("give", "<user> item <name>")
	require.NoError(t, err)

	assert.True(t, sig.Match([]string{"bob", "item", "sword"}))
	assert.False(t, sig.Match([]string{"bob", "thing", "sword"}))
	assert.Equal(t, Args{"user": "bob", "name": "sword"}, sig.Bind([]string{"bob", "item", "sword"}))
}

func TestParseSignatureLowerCasesNames(t *testing.T) {
	sig, err := ParseSignature("ban", "<User>")
	require.NoError(t, err)

	args := sig.Bind([]string{"Alice"})
	assert.Equal(t, "Alice", args["user"])
	assert.Equal(t, "Alice", args.Get("USER"))
}

func TestParseSignatureNoArguments(t *testing.T) {
	sig, err := ParseSignature("status", "")
	require.NoError(t, err)

	assert.Empty(t, sig.Arguments())
	assert.True(t, sig.Match(nil))
	assert.False(t, sig.Match([]string{"extra"}))
	assert.Equal(t, "^$", sig.Pattern())
}

func TestParseSignatureErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"optional before required", "[a] <b>"},
		{"rest before required", "{a} <b>"},
		{"optional rest before literal", "(a) done"},
		{"empty name", "<>"},
		{"empty optional name", "<a> []"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignature("cmd", tt.format)
			require.Error(t, err)
			var ce *CreationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "cmd", ce.Command)
			assert.Equal(t, tt.format, ce.Format)
		})
	}
}

func TestSignatureString(t *testing.T) {
	sig, err := ParseSignature("ban", "ban <user> [reason]")
	require.NoError(t, err)
	assert.Equal(t, "<user> [reason]", sig.String())

	sig, err = ParseSignature("say", "to {text}")
	require.NoError(t, err)
	assert.Equal(t, "to {text}", sig.String())
}
