package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func noop() Handler {
	return SenderHandler(func(context.Context, Sender) error { return nil })
}

func mustSpec(t *testing.T, name, format string, aliases ...string) *Definition {
	t.Helper()
	def, err := NewDefinition(Spec{Name: name, Format: format, Aliases: aliases, Handler: noop()})
	require.NoError(t, err)
	return def
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	ban := mustSpec(t, "ban", "<user>", "b")
	banReason := mustSpec(t, "ban", "<user> <reason>")
	require.NoError(t, reg.Register(ban))
	require.NoError(t, reg.Register(banReason))

	assert.Equal(t, []*Definition{ban, banReason}, reg.Resolve("ban"))
	assert.Equal(t, []*Definition{ban}, reg.Resolve("b"))
	assert.Empty(t, reg.Resolve("unknown"))
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryNamePrecedesAlias(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	list := mustSpec(t, "list", "", "ls")
	ls := mustSpec(t, "ls", "")
	require.NoError(t, reg.Register(list))
	require.NoError(t, reg.Register(ls))

	assert.Equal(t, []*Definition{ls}, reg.Resolve("ls"))
}

func TestRegistryRejectsOverlap(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	kick := mustSpec(t, "kick", "<user>")
	require.NoError(t, reg.Register(kick))

	optional := mustSpec(t, "kick", "<user> [reason]", "k")
	err := reg.Register(optional)
	var oe *OverlapError
	require.True(t, errors.As(err, &oe))
	assert.Same(t, optional, oe.New)
	assert.Same(t, kick, oe.Existing)
	assert.Equal(t, 1, reg.Len())
	assert.Empty(t, reg.Resolve("k"))

	require.NoError(t, reg.Register(mustSpec(t, "kick", "<user> <reason>")))
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryOverlapIgnoresCase(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, reg.Register(mustSpec(t, "Kick", "<user>")))

	var oe *OverlapError
	assert.True(t, errors.As(reg.Register(mustSpec(t, "kick", "<player>")), &oe))
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	def := mustSpec(t, "ping", "")
	require.NoError(t, reg.Register(def))
	assert.Error(t, reg.Register(def))
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	def := mustSpec(t, "ping", "", "p", "pp")
	require.NoError(t, reg.Register(def))

	assert.True(t, reg.Remove(def))
	assert.False(t, reg.Remove(def))
	assert.Empty(t, reg.Resolve("ping"))
	assert.Empty(t, reg.Resolve("p"))
	assert.Empty(t, reg.Commands())
	assert.Empty(t, reg.Aliases())
}

func TestRegistryRemoveName(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, reg.Register(mustSpec(t, "ban", "<user>")))
	require.NoError(t, reg.Register(mustSpec(t, "ban", "<user> <reason>")))
	require.NoError(t, reg.Register(mustSpec(t, "kick", "<user>")))

	assert.Equal(t, 2, reg.RemoveName("ban"))
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 0, reg.RemoveName("ban"))
}

func TestRegistrySetAliases(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	def := mustSpec(t, "teleport", "<target>", "tp")
	require.NoError(t, reg.Register(def))

	require.NoError(t, reg.SetAliases(def, []string{"warp", "warp", " go "}))
	assert.Equal(t, []string{"warp", "go"}, def.Aliases())
	assert.Empty(t, reg.Resolve("tp"))
	assert.Equal(t, []*Definition{def}, reg.Resolve("warp"))
	assert.Equal(t, []*Definition{def}, reg.Resolve("go"))

	other := mustSpec(t, "other", "")
	assert.ErrorIs(t, reg.SetAliases(other, []string{"o"}), ErrNotRegistered)
}

func TestRegistrySharedAlias(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	a := mustSpec(t, "alpha", "", "x")
	b := mustSpec(t, "beta", "<n>", "x")
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))

	assert.Equal(t, []*Definition{a, b}, reg.Resolve("x"))
	reg.Remove(a)
	assert.Equal(t, []*Definition{b}, reg.Resolve("x"))
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, reg.Register(mustSpec(t, "beta", "")))
	require.NoError(t, reg.Register(mustSpec(t, "alpha", "")))

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name())
	assert.Equal(t, "beta", list[1].Name())
}

func TestResolveReturnsCopy(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	def := mustSpec(t, "ping", "")
	require.NoError(t, reg.Register(def))

	got := reg.Resolve("ping")
	got[0] = nil
	assert.Same(t, def, reg.Resolve("ping")[0])
}

func TestNewDefinitionValidation(t *testing.T) {
	_, err := NewDefinition(Spec{Name: "two words", Handler: noop()})
	assert.Error(t, err)

	_, err = NewDefinition(Spec{Name: "ping"})
	var ce *CreationError
	assert.True(t, errors.As(err, &ce))

	_, err = NewDefinition(Spec{Name: "ping", Flags: []string{"force"}, Handler: noop()})
	assert.True(t, errors.As(err, &ce))
}

func TestDefinitionUsage(t *testing.T) {
	def, err := NewDefinition(Spec{
		Name:        "ban",
		Format:      "ban <user> [reason]",
		Description: "Ban a user",
		Flags:       []string{"-s", "--days=value"},
		Handler:     noop(),
	})
	require.NoError(t, err)

	assert.Equal(t, "/ban <user> [reason]", def.Usage("/"))
	assert.Contains(t, def.HelpString("/"), "Ban a user")
	assert.True(t, def.AcceptsFlag("s"))
	assert.True(t, def.AcceptsFlag("days"))
	assert.False(t, def.AcceptsFlag("force"))
	assert.Equal(t, AritySender, def.Arity())
}
