package command

import (
	"fmt"
	"strings"
	"sync"
)

// Spec describes a command before it is compiled. Discovery mechanisms
// (manifests, builtin tables) produce a Spec and hand it to the registry.
type Spec struct {
	Name        string
	Format      string
	Description string
	Aliases     []string
	Flags       []string
	Attributes  map[string]Value
	Handler     Handler
}

// Definition is a compiled, registrable command.
type Definition struct {
	name        string
	format      string
	description string
	flagDecls   []string
	flags       []FlagSpec
	signature   *Signature
	handler     Handler
	attributes  *Attributes

	mu      sync.RWMutex
	aliases []string
}

// NewDefinition compiles spec. Any structural problem is reported as a
// *CreationError and nothing is built.
func NewDefinition(spec Spec) (*Definition, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return nil, &CreationError{Command: spec.Name, Format: spec.Format, Reason: "name must be a single non-empty word"}
	}
	if !spec.Handler.Valid() {
		return nil, &CreationError{Command: name, Format: spec.Format, Reason: "unsupported handler arity"}
	}

	sig, err := ParseSignature(name, spec.Format)
	if err != nil {
		return nil, err
	}
	flags, err := ParseFlagSpecs(spec.Flags)
	if err != nil {
		return nil, &CreationError{Command: name, Format: spec.Format, Reason: err.Error()}
	}

	return &Definition{
		name:        name,
		format:      spec.Format,
		description: spec.Description,
		flagDecls:   append([]string(nil), spec.Flags...),
		flags:       flags,
		signature:   sig,
		handler:     spec.Handler,
		attributes:  NewAttributes(spec.Attributes),
		aliases:     dedupe(spec.Aliases),
	}, nil
}

// MustDefinition is NewDefinition for static tables; it panics on error.
func MustDefinition(spec Spec) *Definition {
	def, err := NewDefinition(spec)
	if err != nil {
		panic(err)
	}
	return def
}

// Name returns the registered command name.
func (d *Definition) Name() string { return d.name }

// Format returns the raw argument format.
func (d *Definition) Format() string { return d.format }

// Description returns the help text.
func (d *Definition) Description() string { return d.description }

// Signature returns the compiled argument format.
func (d *Definition) Signature() *Signature { return d.signature }

// Attributes returns the mutable attribute store.
func (d *Definition) Attributes() *Attributes { return d.attributes }

// Arity reports which inputs the handler takes.
func (d *Definition) Arity() Arity { return d.handler.Arity() }

// Arguments returns the compiled argument slots.
func (d *Definition) Arguments() []Argument { return d.signature.Arguments() }

// Flags returns the accepted flags.
func (d *Definition) Flags() []FlagSpec {
	return append([]FlagSpec(nil), d.flags...)
}

// FlagDeclarations returns the flags as originally declared.
func (d *Definition) FlagDeclarations() []string {
	return append([]string(nil), d.flagDecls...)
}

// Aliases returns a copy of the current aliases.
func (d *Definition) Aliases() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.aliases...)
}

func (d *Definition) setAliases(aliases []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.aliases
	d.aliases = dedupe(aliases)
	return old
}

// AcceptsFlag reports whether name is a declared flag.
func (d *Definition) AcceptsFlag(name string) bool {
	for _, f := range d.flags {
		if f.Name == name {
			return true
		}
	}
	return false
}

// checkFlag validates one supplied flag against the declarations. A
// "--name=value" flag must carry a value and a bare flag must not.
func (d *Definition) checkFlag(name, value string) error {
	for _, f := range d.flags {
		if f.Name != name {
			continue
		}
		switch {
		case f.NeedsValue && value == "":
			return &FlagError{Command: d.name, Flag: name, Reason: "requires a value"}
		case !f.NeedsValue && value != "":
			return &FlagError{Command: d.name, Flag: name, Reason: "does not take a value"}
		}
		return nil
	}
	return &FlagError{Command: d.name, Flag: name}
}

// Usage renders "/name <args>" for help output.
func (d *Definition) Usage(prefix string) string {
	if sig := d.signature.String(); sig != "" {
		return prefix + d.name + " " + sig
	}
	return prefix + d.name
}

// HelpString is a one-line summary of the command.
func (d *Definition) HelpString(prefix string) string {
	return fmt.Sprintf("**Name**: %s\t**Usage**: %s\t**Description**: %s", d.name, d.Usage(prefix), d.description)
}

func (d *Definition) String() string {
	return fmt.Sprintf("Definition(name=%s, format=%s, description=%s, aliases=%v, flags=%v, attributes=%v)",
		d.name, d.format, d.description, d.Aliases(), d.flagDecls, d.attributes.Snapshot())
}

func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
