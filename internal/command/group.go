package command

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Group is a set of definitions registered and removed together, such as
// everything loaded from one manifest file.
type Group struct {
	name string

	mu   sync.Mutex
	defs []*Definition
}

// NewGroup creates an empty group.
func NewGroup(name string) *Group {
	return &Group{name: name}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Add compiles spec and adds the result to the group.
func (g *Group) Add(spec Spec) (*Definition, error) {
	def, err := NewDefinition(spec)
	if err != nil {
		return nil, err
	}
	g.AddDefinition(def)
	return def, nil
}

// AddDefinition adds an already compiled definition.
func (g *Group) AddDefinition(def *Definition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defs = append(g.defs, def)
}

// Definitions returns the group's members in insertion order.
func (g *Group) Definitions() []*Definition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Definition(nil), g.defs...)
}

// Register adds every member to reg. A member that fails does not stop the
// others; all failures are returned combined.
func (g *Group) Register(reg *Registry) error {
	var errs error
	for _, def := range g.Definitions() {
		if err := reg.Register(def); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("group %s: %w", g.name, err))
		}
	}
	return errs
}

// Unregister removes every member from reg and returns how many were
// registered.
func (g *Group) Unregister(reg *Registry) int {
	n := 0
	for _, def := range g.Definitions() {
		if reg.Remove(def) {
			n++
		}
	}
	return n
}
