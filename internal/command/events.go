package command

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PreProcessEvent fires after binding and before the handler runs.
// Cancelling it only affects this one dispatch.
type PreProcessEvent struct {
	ID      string
	Sender  Sender
	Command *Definition
	Args    Args
	Flags   Flags

	cancelled atomic.Bool
}

// Cancel vetoes the dispatch; the handler will not run.
func (e *PreProcessEvent) Cancel() { e.cancelled.Store(true) }

// Cancelled reports whether a listener vetoed the dispatch.
func (e *PreProcessEvent) Cancelled() bool { return e.cancelled.Load() }

// PostProcessEvent fires exactly once per dispatch, whatever the outcome.
// Command, Args and Flags may be nil.
type PostProcessEvent struct {
	ID       string
	Sender   Sender
	Command  *Definition
	Args     Args
	Flags    Flags
	Outcome  Outcome
	Err      error
	Started  time.Time
	Finished time.Time
}

// ExceptionEvent fires before the post-process event when a handler fails
// with an unexpected error or panics.
type ExceptionEvent struct {
	ID      string
	Sender  Sender
	Command *Definition
	Err     error
}

// Listener observes the dispatch pipeline. Callbacks run on the dispatching
// goroutine, so they should return quickly.
type Listener interface {
	OnPreProcess(e *PreProcessEvent)
	OnPostProcess(e *PostProcessEvent)
	OnException(e *ExceptionEvent)
}

// ListenerFuncs adapts plain functions to Listener; nil fields are skipped.
type ListenerFuncs struct {
	PreProcess  func(e *PreProcessEvent)
	PostProcess func(e *PostProcessEvent)
	Exception   func(e *ExceptionEvent)
}

// OnPreProcess calls PreProcess when set.
func (f ListenerFuncs) OnPreProcess(e *PreProcessEvent) {
	if f.PreProcess != nil {
		f.PreProcess(e)
	}
}

// OnPostProcess calls PostProcess when set.
func (f ListenerFuncs) OnPostProcess(e *PostProcessEvent) {
	if f.PostProcess != nil {
		f.PostProcess(e)
	}
}

// OnException calls Exception when set.
func (f ListenerFuncs) OnException(e *ExceptionEvent) {
	if f.Exception != nil {
		f.Exception(e)
	}
}

type listenerEntry struct {
	id uint64
	l  Listener
}

// Hub fans events out to listeners in registration order. A panicking
// listener is logged and skipped; the rest still run.
type Hub struct {
	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    uint64
	logger    *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger}
}

// AddListener registers l and returns a function that removes it again.
func (h *Hub) AddListener(l Listener) (remove func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, listenerEntry{id: id, l: l})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.removeListener(id) })
	}
}

func (h *Hub) removeListener(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.listeners {
		if e.id == id {
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) snapshot() []Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Listener, len(h.listeners))
	for i, e := range h.listeners {
		out[i] = e.l
	}
	return out
}

// FirePreProcess notifies every listener, including those registered after
// one that cancels.
func (h *Hub) FirePreProcess(e *PreProcessEvent) {
	for _, l := range h.snapshot() {
		h.safely("pre_process", e.ID, func() { l.OnPreProcess(e) })
	}
}

// FirePostProcess notifies every listener.
func (h *Hub) FirePostProcess(e *PostProcessEvent) {
	for _, l := range h.snapshot() {
		h.safely("post_process", e.ID, func() { l.OnPostProcess(e) })
	}
}

// FireException notifies every listener.
func (h *Hub) FireException(e *ExceptionEvent) {
	for _, l := range h.snapshot() {
		h.safely("exception", e.ID, func() { l.OnException(e) })
	}
}

func (h *Hub) safely(event, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("command listener panicked",
				zap.String("event", event),
				zap.String("dispatch_id", id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn()
}
