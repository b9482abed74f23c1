package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func TestGroupRegisterAndUnregister(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, reg.Register(mustSpec(t, "kick", "<user>")))

	g := NewGroup("moderation")
	_, err := g.Add(Spec{Name: "ban", Format: "<user>", Handler: noop()})
	require.NoError(t, err)
	_, err = g.Add(Spec{Name: "kick", Format: "<player>", Handler: noop()})
	require.NoError(t, err)
	_, err = g.Add(Spec{Name: "mute", Format: "<user> [minutes]", Handler: noop()})
	require.NoError(t, err)

	err = g.Register(reg)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "group moderation")
	assert.Equal(t, 3, reg.Len())

	assert.Equal(t, 2, g.Unregister(reg))
	assert.Equal(t, 1, reg.Len())
	assert.Len(t, reg.Resolve("kick"), 1)
}

func TestGroupAddRejectsBadSpec(t *testing.T) {
	g := NewGroup("bad")
	_, err := g.Add(Spec{Name: "x", Format: "[a] <b>", Handler: noop()})
	assert.Error(t, err)
	assert.Empty(t, g.Definitions())
}
