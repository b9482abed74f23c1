package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Interfaces, kept here so builtin commands avoid importing concrete types.
// ---------------------------------------------------------------------------

// StatusProvider provides adapter connection status.
type StatusProvider interface {
	StatusAll() []AdapterStatus
}

// AdapterStatus describes the connection state of a platform adapter.
type AdapterStatus struct {
	Name      string
	Platform  string
	Connected bool
}

// Broadcaster pushes a message to every connected platform.
type Broadcaster interface {
	Broadcast(ctx context.Context, msgType, title, content string) error
}

// RunLister lists recently recorded dispatches.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]RunInfo, error)
}

// RunInfo describes one recorded dispatch.
type RunInfo struct {
	ID       string
	Command  string
	Sender   string
	Outcome  string
	Error    string
	Duration time.Duration
	Finished time.Time
}

// Builtins carries the optional collaborators of the builtin commands. A
// nil collaborator leaves its command out.
type Builtins struct {
	Prefix      string
	Status      StatusProvider
	Broadcaster Broadcaster
	Runs        RunLister
}

const defaultRunsLimit = 10

// RegisterBuiltins registers help, echo and chain, plus status, broadcast
// and runs when their collaborators are set. The returned group can remove
// them again.
func RegisterBuiltins(reg *Registry, b Builtins) (*Group, error) {
	g := NewGroup("builtin")
	specs := []Spec{helpCommand(reg, b.Prefix), echoCommand(), chainCommand()}
	if b.Status != nil {
		specs = append(specs, statusCommand(reg, b.Status))
	}
	if b.Broadcaster != nil {
		specs = append(specs, broadcastCommand(b.Broadcaster))
	}
	if b.Runs != nil {
		specs = append(specs, runsCommand(b.Runs))
	}
	for _, spec := range specs {
		if _, err := g.Add(spec); err != nil {
			return nil, err
		}
	}
	return g, g.Register(reg)
}

// ---------------------------------------------------------------------------
// help
// ---------------------------------------------------------------------------

func helpCommand(reg *Registry, prefix string) Spec {
	return Spec{
		Name:        "help",
		Format:      "[command]",
		Description: "List all available commands",
		Aliases:     []string{"?"},
		Handler: ArgsHandler(func(_ context.Context, s Sender, args Args) error {
			if name := args.Get("command"); name != "" {
				defs := reg.Resolve(name)
				if len(defs) == 0 {
					return Failf("no command named %s", name)
				}
				var b strings.Builder
				for _, d := range defs {
					fmt.Fprintf(&b, "%s\n", d.HelpString(prefix))
				}
				return s.SendMessage(strings.TrimRight(b.String(), "\n"))
			}

			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, d := range reg.List() {
				fmt.Fprintf(&b, "  %s%s: %s\n", prefix, d.Name(), d.Description())
				fmt.Fprintf(&b, "    Usage: %s\n", d.Usage(prefix))
			}
			return s.SendMessage(strings.TrimRight(b.String(), "\n"))
		}),
	}
}

// ---------------------------------------------------------------------------
// echo
// ---------------------------------------------------------------------------

func echoCommand() Spec {
	return Spec{
		Name:        "echo",
		Format:      "(text)",
		Description: "Repeat the given text",
		Flags:       []string{"--upper", "-u"},
		Handler: FlagsHandler(func(_ context.Context, s Sender, args Args, flags Flags) error {
			text := args.Get("text")
			if text == "" {
				return Failf("nothing to echo")
			}
			if flags.Has("upper") || flags.Has("u") {
				text = strings.ToUpper(text)
			}
			return s.SendMessage(text)
		}),
	}
}

// ---------------------------------------------------------------------------
// chain
// ---------------------------------------------------------------------------

func chainCommand() Spec {
	return Spec{
		Name:        "chain",
		Format:      "<command> (args)",
		Description: "Run another command as the same sender",
		Handler: ArgsHandler(func(ctx context.Context, s Sender, args Args) error {
			name := args.Get("command")
			res, err := s.RunCommand(name, strings.Fields(args.Get("args"))).Wait(ctx)
			if err != nil {
				return fmt.Errorf("wait for %s: %w", name, err)
			}
			if res.Outcome != OutcomeSuccess {
				return Failf("%s finished with %s", name, res.Outcome)
			}
			return nil
		}),
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func statusCommand(reg *Registry, provider StatusProvider) Spec {
	return Spec{
		Name:        "status",
		Description: "Show adapter connection status",
		Handler: SenderHandler(func(_ context.Context, s Sender) error {
			var b strings.Builder
			fmt.Fprintf(&b, "Registered commands: %d\n", reg.Len())
			adapters := provider.StatusAll()
			if len(adapters) == 0 {
				b.WriteString("No adapters configured.")
				return s.SendMessage(b.String())
			}
			b.WriteString("Adapter status:\n")
			for _, a := range adapters {
				state := "disconnected"
				if a.Connected {
					state = "connected"
				}
				fmt.Fprintf(&b, "  %s (%s): %s\n", a.Name, a.Platform, state)
			}
			return s.SendMessage(strings.TrimRight(b.String(), "\n"))
		}),
	}
}

// ---------------------------------------------------------------------------
// broadcast
// ---------------------------------------------------------------------------

func broadcastCommand(bc Broadcaster) Spec {
	return Spec{
		Name:        "broadcast",
		Format:      "<type> <title> {content}",
		Description: "Send a message to every connected platform",
		Handler: ArgsHandler(func(ctx context.Context, s Sender, args Args) error {
			if err := bc.Broadcast(ctx, args.Get("type"), args.Get("title"), args.Get("content")); err != nil {
				return fmt.Errorf("broadcast: %w", err)
			}
			return s.SendMessage("Broadcast sent.")
		}),
	}
}

// ---------------------------------------------------------------------------
// runs
// ---------------------------------------------------------------------------

func runsCommand(lister RunLister) Spec {
	return Spec{
		Name:        "runs",
		Format:      "[limit]",
		Description: "Show recently dispatched commands",
		Handler: ArgsHandler(func(ctx context.Context, s Sender, args Args) error {
			limit := defaultRunsLimit
			if raw := args.Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n <= 0 {
					return Failf("limit must be a positive number, got %q", raw)
				}
				limit = n
			}
			runs, err := lister.RecentRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				return s.SendMessage("No commands recorded yet.")
			}
			var b strings.Builder
			b.WriteString("Recent commands:\n")
			for _, r := range runs {
				fmt.Fprintf(&b, "  %s %s by %s: %s (%s)\n",
					r.Finished.Format(time.RFC3339), r.Command, r.Sender, r.Outcome, r.Duration.Round(time.Millisecond))
			}
			return s.SendMessage(strings.TrimRight(b.String(), "\n"))
		}),
	}
}
