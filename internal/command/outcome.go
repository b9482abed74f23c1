package command

import (
	"fmt"
	"time"
)

// Outcome is the terminal classification of one dispatch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeInvalidFlags
	OutcomeUnknownCommand
	OutcomeException
	OutcomeCancelled
	OutcomeOther
)

var outcomeNames = [...]string{
	OutcomeSuccess:        "success",
	OutcomeFailure:        "failure",
	OutcomeInvalidFlags:   "invalid_flags",
	OutcomeUnknownCommand: "unknown_command",
	OutcomeException:      "exception",
	OutcomeCancelled:      "cancelled",
	OutcomeOther:          "other",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	for i, name := range outcomeNames {
		if name == string(text) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Result is what a dispatch resolves to. Command, Args and Flags are nil
// when the dispatch never got that far.
type Result struct {
	ID       string
	Outcome  Outcome
	Command  *Definition
	Args     Args
	Flags    Flags
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration is the wall time the dispatch took.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
