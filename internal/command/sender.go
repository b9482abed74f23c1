package command

import "sync"

// BufferSender collects every message sent to it. It backs the HTTP execute
// endpoint and tests.
type BufferSender struct {
	name       string
	dispatcher *Dispatcher

	mu       sync.Mutex
	messages []string
}

// NewBufferSender creates a sender named name whose RunCommand goes through
// dispatcher.
func NewBufferSender(name string, dispatcher *Dispatcher) *BufferSender {
	return &BufferSender{name: name, dispatcher: dispatcher}
}

// Name returns the name given at construction.
func (s *BufferSender) Name() string { return s.name }

// SendMessage records text. It never fails.
func (s *BufferSender) SendMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

// RunCommand dispatches name on behalf of this sender.
func (s *BufferSender) RunCommand(name string, args []string) *Future {
	return s.dispatcher.Execute(s, name, args)
}

// Messages returns a copy of everything sent so far.
func (s *BufferSender) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}
