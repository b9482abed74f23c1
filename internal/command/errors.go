package command

import (
	"errors"
	"fmt"
)

var (
	// ErrFailed marks an expected, handled failure returned by a handler.
	// Wrap it with Failf to get a Failure outcome instead of Exception.
	ErrFailed = errors.New("command failed")
	// ErrDispatcherClosed is attached to results of calls submitted after
	// Shutdown.
	ErrDispatcherClosed = errors.New("dispatcher is shut down")
	// ErrShutdownTimeout is returned by Shutdown when in-flight dispatches
	// outlive the deadline and are abandoned.
	ErrShutdownTimeout = errors.New("dispatcher shutdown timed out")
	// ErrNotRegistered is returned for operations on a definition the
	// registry does not hold.
	ErrNotRegistered = errors.New("command not registered")
)

// CreationError reports a structural problem with a command definition:
// a malformed format, an invalid flag declaration or an unusable handler.
type CreationError struct {
	Command string
	Format  string
	Reason  string
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create command %s{%s}: %s", e.Command, e.Format, e.Reason)
}

// OverlapError rejects a registration whose signature is ambiguous with an
// already registered definition of the same name.
type OverlapError struct {
	New      *Definition
	Existing *Definition
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("command %s{%s} overlaps with previously registered command %s{%s}",
		e.New.Name(), e.New.Format(), e.Existing.Name(), e.Existing.Format())
}

// FlagError reports a flag the matched command does not declare, or one
// supplied with the wrong value shape. Reason is empty for undeclared flags.
type FlagError struct {
	Command string
	Flag    string
	Reason  string
}

func (e *FlagError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("flag { %s } of the command %s %s", e.Flag, e.Command, e.Reason)
	}
	return fmt.Sprintf("{ %s } is not a valid flag for the command %s", e.Flag, e.Command)
}

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Failf builds an error that yields a Failure outcome. The message is meant
// to be shown to the sender.
func Failf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFailed, fmt.Sprintf(format, args...))
}
