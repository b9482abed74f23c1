package store

import (
	"context"
	"sync"
	"time"

	"github.com/nidhogg/nuka-commands/internal/command"
	"go.uber.org/zap"
)

// RunWriter persists runs; *Store is the production implementation.
type RunWriter interface {
	RecordRun(ctx context.Context, r Run) error
}

const recordTimeout = 5 * time.Second

// Recorder is a command.Listener that writes every finished dispatch to a
// RunWriter. Writes happen on a background goroutine so listeners never
// block dispatch; when the queue is full the run is dropped and logged.
type Recorder struct {
	w      RunWriter
	queue  chan Run
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// NewRecorder starts a recorder with room for buffer pending runs.
func NewRecorder(w RunWriter, buffer int, logger *zap.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		w:      w,
		queue:  make(chan Run, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer close(r.done)
	for run := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.w.RecordRun(ctx, run); err != nil {
			r.logger.Error("record command run failed",
				zap.String("dispatch_id", run.ID), zap.Error(err))
		}
		cancel()
	}
}

func (r *Recorder) OnPreProcess(*command.PreProcessEvent) {}

func (r *Recorder) OnException(*command.ExceptionEvent) {}

func (r *Recorder) OnPostProcess(e *command.PostProcessEvent) {
	run := RunFromEvent(e)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- run:
	default:
		r.logger.Warn("command run queue full, dropping record", zap.String("dispatch_id", run.ID))
	}
}

// Close stops accepting runs and waits until the queue is flushed or ctx
// ends. Runs arriving after Close are ignored.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunFromEvent converts a post-process event into a Run.
func RunFromEvent(e *command.PostProcessEvent) Run {
	run := Run{
		ID:       e.ID,
		Outcome:  e.Outcome.String(),
		Args:     e.Args,
		Flags:    e.Flags,
		Started:  e.Started,
		Finished: e.Finished,
	}
	if e.Command != nil {
		run.Command = e.Command.Name()
		run.Format = e.Command.Format()
	}
	if e.Sender != nil {
		run.Sender = e.Sender.Name()
	}
	if e.Err != nil {
		run.Error = e.Err.Error()
	}
	return run
}
