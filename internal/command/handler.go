package command

import "context"

// Sender is whoever issued a command: a chat user, the REST console, a test.
type Sender interface {
	SendMessage(text string) error
	Name() string
	// RunCommand dispatches another command on behalf of this sender.
	RunCommand(name string, args []string) *Future
}

// Arity identifies which of the four supported handler shapes is bound.
type Arity int

const (
	AritySender Arity = iota + 1
	ArityArgs
	ArityFlags
	ArityAttributes
)

// Handler is a command body with one of four arities. Build it with
// SenderHandler, ArgsHandler, FlagsHandler or AttributesHandler; the zero
// Handler is rejected at registration.
type Handler struct {
	arity Arity
	fn    func(ctx context.Context, s Sender, args Args, flags Flags, attrs *Attributes) error
}

// SenderHandler binds a handler that only needs the sender.
func SenderHandler(fn func(ctx context.Context, s Sender) error) Handler {
	if fn == nil {
		return Handler{}
	}
	return Handler{arity: AritySender, fn: func(ctx context.Context, s Sender, _ Args, _ Flags, _ *Attributes) error {
		return fn(ctx, s)
	}}
}

// ArgsHandler binds a handler taking the sender and bound arguments.
func ArgsHandler(fn func(ctx context.Context, s Sender, args Args) error) Handler {
	if fn == nil {
		return Handler{}
	}
	return Handler{arity: ArityArgs, fn: func(ctx context.Context, s Sender, args Args, _ Flags, _ *Attributes) error {
		return fn(ctx, s, args)
	}}
}

// FlagsHandler binds a handler taking the sender, arguments and flags.
func FlagsHandler(fn func(ctx context.Context, s Sender, args Args, flags Flags) error) Handler {
	if fn == nil {
		return Handler{}
	}
	return Handler{arity: ArityFlags, fn: func(ctx context.Context, s Sender, args Args, flags Flags, _ *Attributes) error {
		return fn(ctx, s, args, flags)
	}}
}

// AttributesHandler binds a handler that also reads the definition's
// attributes.
func AttributesHandler(fn func(ctx context.Context, s Sender, args Args, flags Flags, attrs *Attributes) error) Handler {
	if fn == nil {
		return Handler{}
	}
	return Handler{arity: ArityAttributes, fn: fn}
}

// Arity returns the bound shape, or 0 for the zero Handler.
func (h Handler) Arity() Arity { return h.arity }

// Valid reports whether a handler function is bound.
func (h Handler) Valid() bool { return h.fn != nil && h.arity >= AritySender && h.arity <= ArityAttributes }

func (h Handler) call(ctx context.Context, s Sender, args Args, flags Flags, attrs *Attributes) error {
	return h.fn(ctx, s, args, flags, attrs)
}
