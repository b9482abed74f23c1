package command

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Options tune a Dispatcher.
type Options struct {
	// ProcessFlags splits flag-looking tokens out of argv. When false every
	// token is positional.
	ProcessFlags bool
	// MaxConcurrent bounds how many dispatches run at once; 0 is unbounded.
	MaxConcurrent int64
	// ShutdownTimeout caps how long Shutdown waits for in-flight work.
	ShutdownTimeout time.Duration
}

// DefaultOptions processes flags, runs unbounded and waits up to ten
// seconds on shutdown.
func DefaultOptions() Options {
	return Options{ProcessFlags: true, ShutdownTimeout: 10 * time.Second}
}

// Dispatcher resolves and runs commands off the caller's goroutine.
type Dispatcher struct {
	registry *Registry
	hub      *Hub
	opts     Options
	sem      *semaphore.Weighted
	logger   *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	pending atomic.Int64
}

// NewDispatcher creates a dispatcher over reg that reports through hub.
func NewDispatcher(reg *Registry, hub *Hub, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		registry: reg,
		hub:      hub,
		opts:     opts,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
	if opts.MaxConcurrent > 0 {
		d.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return d
}

// Registry returns the registry commands are resolved against.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Hub returns the event hub.
func (d *Dispatcher) Hub() *Hub { return d.hub }

// Pending returns the number of accepted dispatches not yet finished.
func (d *Dispatcher) Pending() int64 { return d.pending.Load() }

// Execute submits a dispatch and returns immediately. The future always
// resolves with a Result; dispatch failures are never returned as errors.
func (d *Dispatcher) Execute(sender Sender, name string, argv []string) *Future {
	return d.execute(sender, name, argv, false)
}

// execute runs one dispatch. Nested dispatches, issued by a handler through
// its sender, ride on the caller's slot: they skip the semaphore and the
// closed check because the outer dispatch already holds both.
func (d *Dispatcher) execute(sender Sender, name string, argv []string, nested bool) *Future {
	id := uuid.NewString()
	argv = append([]string(nil), argv...)

	d.mu.Lock()
	if d.closed && !nested {
		d.mu.Unlock()
		d.logger.Warn("dispatch rejected after shutdown", zap.String("command", name))
		res := &Result{ID: id, Outcome: OutcomeOther, Err: ErrDispatcherClosed, Started: time.Now()}
		return resolvedFuture(d.complete(sender, res))
	}
	d.wg.Add(1)
	d.pending.Add(1)
	d.mu.Unlock()

	f := newFuture()
	go func() {
		defer func() {
			d.pending.Add(-1)
			d.wg.Done()
		}()

		if d.sem != nil && !nested {
			if err := d.sem.Acquire(d.baseCtx, 1); err != nil {
				res := &Result{ID: id, Outcome: OutcomeOther, Err: ErrDispatcherClosed, Started: time.Now()}
				f.resolve(d.complete(sender, res))
				return
			}
			defer d.sem.Release(1)
		}
		f.resolve(d.dispatch(id, sender, name, argv))
	}()
	return f
}

// nestedSender is handed to handlers so that RunCommand from inside a
// handler does not wait for a second concurrency slot.
type nestedSender struct {
	Sender
	d *Dispatcher
}

// RunCommand dispatches on behalf of the wrapped sender without acquiring a slot.
func (s nestedSender) RunCommand(name string, args []string) *Future {
	return s.d.execute(s.Sender, name, args, true)
}

func (d *Dispatcher) dispatch(id string, sender Sender, name string, argv []string) *Result {
	res := &Result{ID: id, Started: time.Now()}

	flags, positionals := Split(argv, d.opts.ProcessFlags)
	cmd := d.match(name, positionals)
	if cmd == nil {
		res.Outcome = OutcomeUnknownCommand
		return d.complete(sender, res)
	}

	res.Command = cmd
	res.Flags = flags
	for _, key := range flags.Keys() {
		if err := cmd.checkFlag(key, flags[key]); err != nil {
			res.Outcome = OutcomeInvalidFlags
			res.Err = err
			return d.complete(sender, res)
		}
	}

	res.Args = cmd.signature.Bind(positionals)
	pre := &PreProcessEvent{ID: id, Sender: sender, Command: cmd, Args: res.Args, Flags: flags}
	d.hub.FirePreProcess(pre)
	if pre.Cancelled() {
		res.Outcome = OutcomeCancelled
		return d.complete(sender, res)
	}

	err := d.invoke(cmd, sender, res.Args, flags)
	switch {
	case err == nil:
		res.Outcome = OutcomeSuccess
	case errors.Is(err, ErrFailed):
		res.Outcome = OutcomeFailure
		res.Err = err
	default:
		res.Outcome = OutcomeException
		res.Err = err
		d.hub.FireException(&ExceptionEvent{ID: id, Sender: sender, Command: cmd, Err: err})
	}
	return d.complete(sender, res)
}

// match returns the first candidate, in registration order, whose
// signature accepts the positional tokens.
func (d *Dispatcher) match(name string, positionals []string) *Definition {
	for _, cand := range d.registry.Resolve(name) {
		if cand.signature.Match(positionals) {
			return cand
		}
	}
	return nil
}

func (d *Dispatcher) invoke(cmd *Definition, sender Sender, args Args, flags Flags) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if sender != nil {
		sender = nestedSender{Sender: sender, d: d}
	}
	return cmd.handler.call(d.baseCtx, sender, args, flags, cmd.attributes)
}

func (d *Dispatcher) complete(sender Sender, res *Result) *Result {
	res.Finished = time.Now()
	d.hub.FirePostProcess(&PostProcessEvent{
		ID:       res.ID,
		Sender:   sender,
		Command:  res.Command,
		Args:     res.Args,
		Flags:    res.Flags,
		Outcome:  res.Outcome,
		Err:      res.Err,
		Started:  res.Started,
		Finished: res.Finished,
	})
	return res
}

// Shutdown stops accepting new dispatches and waits for in-flight ones
// until ctx ends or the configured timeout passes. Work still running after
// that is abandoned: its context is cancelled and ErrShutdownTimeout is
// returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	if d.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("command dispatcher stopped")
		return nil
	case <-ctx.Done():
		abandoned := d.pending.Load()
		d.cancel()
		d.logger.Warn("failed to safely shutdown command dispatcher",
			zap.Int64("abandoned", abandoned), zap.Error(ctx.Err()))
		return fmt.Errorf("%w: abandoned %d in-flight dispatch(es)", ErrShutdownTimeout, abandoned)
	}
}
