package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nidhogg/nuka-commands/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const greetManifest = `
commands:
  - name: greet
    format: "<who> [greeting]"
    description: Greet someone
    aliases: [hi]
    flags: ["--shout", "-s"]
    attributes:
      owner: ops
      limit: 3
      tags: [a, b]
    reply: '{{default "Hello" .Args.greeting}}, {{if .Flags.Has "shout"}}{{upper .Args.who}}{{else}}{{.Args.who}}{{end}}! ({{.Sender}}, {{.Attributes.owner}})'
  - name: whoowns
    run: [greet, "{{.Attributes.owner}}", "Hey"]
    attributes:
      owner: platform
`

func newDispatcher(t *testing.T) (*command.Dispatcher, *command.BufferSender) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	d := command.NewDispatcher(command.NewRegistry(logger), nil, command.DefaultOptions(), logger)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return d, command.NewBufferSender("tester", d)
}

func exec(t *testing.T, d *command.Dispatcher, s command.Sender, name string, argv ...string) *command.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := d.Execute(s, name, argv).Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestParseAndRun(t *testing.T) {
	specs, err := Parse([]byte(greetManifest), "greet.yaml")
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "ops", specs[0].Attributes["owner"].Any())
	assert.Equal(t, int64(3), specs[0].Attributes["limit"].Any())

	d, s := newDispatcher(t)
	for _, spec := range specs {
		_, err := d.Registry().RegisterSpec(spec)
		require.NoError(t, err)
	}

	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "greet", "bob").Outcome)
	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "hi", "--shout", "bob", "Yo").Outcome)
	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "whoowns").Outcome)

	assert.Equal(t, []string{
		"Hello, bob! (tester, ops)",
		"Yo, BOB! (tester, ops)",
		"Hey, platform! (tester, ops)",
	}, s.Messages())
}

func TestRunWithSingleSlot(t *testing.T) {
	specs, err := Parse([]byte(greetManifest), "greet.yaml")
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	opts := command.DefaultOptions()
	opts.MaxConcurrent = 1
	d := command.NewDispatcher(command.NewRegistry(logger), nil, opts, logger)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	for _, spec := range specs {
		_, err := d.Registry().RegisterSpec(spec)
		require.NoError(t, err)
	}
	s := command.NewBufferSender("tester", d)

	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "whoowns").Outcome)
	assert.Equal(t, []string{"Hey, platform! (tester, ops)"}, s.Messages())
}

func TestRunReportsChainedFailure(t *testing.T) {
	specs, err := Parse([]byte(`
commands:
  - name: broken
    run: [missing, "x"]
`), "broken.yaml")
	require.NoError(t, err)

	d, s := newDispatcher(t)
	_, err = d.Registry().RegisterSpec(specs[0])
	require.NoError(t, err)

	res := exec(t, d, s, "broken")
	assert.Equal(t, command.OutcomeFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, command.ErrFailed)
}

func TestParseCollectsEntryErrors(t *testing.T) {
	specs, err := Parse([]byte(`
commands:
  - name: ok
    reply: fine
  - name: both
    reply: x
    run: [ok]
  - name: neither
  - reply: nameless
  - name: badtemplate
    reply: "{{.Args.x"
  - name: badattr
    reply: x
    attributes:
      ratio: 0.5
`), "mixed.yaml")

	require.Len(t, specs, 1)
	assert.Equal(t, "ok", specs[0].Name)
	assert.Len(t, multierr.Errors(err), 5)
	assert.Contains(t, err.Error(), "exactly one of reply or run")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("commands:\n  - name: x\n    replie: typo\n"), "typo.yaml")
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.yaml"), []byte(greetManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte(`
commands:
  - name: ban
    format: "[a] <b>"
    reply: x
  - name: pardon
    format: "<user>"
    reply: "{{.Args.user}} pardoned"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	groups, err := LoadDir(dir)
	require.Len(t, groups, 2)
	assert.Equal(t, "bad", groups[0].Name())
	assert.Len(t, groups[0].Definitions(), 1)
	assert.Equal(t, "greet", groups[1].Name())
	assert.Len(t, groups[1].Definitions(), 2)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
}

func TestLoadDirMissing(t *testing.T) {
	groups, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, err)
	assert.Empty(t, groups)
}

func TestInstall(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.yaml"), []byte(greetManifest), 0o644))

	reg := command.NewRegistry(zap.NewNop())
	groups, err := Install(reg, dir, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, reg.Len())
	assert.NotEmpty(t, reg.Resolve("hi"))

	assert.Equal(t, 2, groups[0].Unregister(reg))
	assert.Equal(t, 0, reg.Len())
}

func TestBundledExamples(t *testing.T) {
	group, err := LoadFile(filepath.Join("..", "..", "commands", "examples.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "examples", group.Name())

	d, s := newDispatcher(t)
	_, err = command.RegisterBuiltins(d.Registry(), command.Builtins{Prefix: "/"})
	require.NoError(t, err)
	require.NoError(t, group.Register(d.Registry()))

	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "greet", "-s", "ann").Outcome)
	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "hi", "ann", "Howdy").Outcome)
	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "oncall").Outcome)
	assert.Equal(t, command.OutcomeSuccess, exec(t, d, s, "shout", "quiet", "please").Outcome)

	assert.Equal(t, []string{
		"HELLO, ann!",
		"Howdy, ann!",
		"Page platform-team in #incidents.",
		"QUIET PLEASE",
	}, s.Messages())
}
