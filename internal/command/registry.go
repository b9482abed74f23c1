package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry holds every registered definition by name and by alias. Several
// definitions may share a name; their registration order is the order in
// which dispatch tries them.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string][]*Definition
	byAlias map[string][]*Definition
	logger  *zap.Logger
}

// NewRegistry creates an empty command registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byName:  make(map[string][]*Definition),
		byAlias: make(map[string][]*Definition),
		logger:  logger,
	}
}

// Register adds def unless its signature overlaps a definition already
// registered under the same name (compared case-insensitively), in which
// case an *OverlapError is returned and the registry is unchanged.
func (r *Registry) Register(def *Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.containsLocked(def) {
		return fmt.Errorf("register %s: already registered", def.Name())
	}
	if existing := r.overlapLocked(def); existing != nil {
		err := &OverlapError{New: def, Existing: existing}
		r.logger.Error("found an overlapping command",
			zap.String("command", def.Name()),
			zap.String("format", def.Format()),
			zap.String("existing_format", existing.Format()))
		return err
	}

	r.byName[def.Name()] = append(r.byName[def.Name()], def)
	for _, alias := range def.Aliases() {
		r.addAliasLocked(alias, def)
	}
	r.logger.Debug("added command",
		zap.String("command", def.Name()),
		zap.String("format", def.Format()),
		zap.Strings("aliases", def.Aliases()))
	return nil
}

// RegisterSpec compiles spec and registers the result.
func (r *Registry) RegisterSpec(spec Spec) (*Definition, error) {
	def, err := NewDefinition(spec)
	if err != nil {
		return nil, err
	}
	if err := r.Register(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (r *Registry) containsLocked(def *Definition) bool {
	for _, d := range r.byName[def.Name()] {
		if d == def {
			return true
		}
	}
	return false
}

func (r *Registry) overlapLocked(def *Definition) *Definition {
	args := def.signature.args
	for name, defs := range r.byName {
		if !strings.EqualFold(name, def.Name()) {
			continue
		}
		for _, existing := range defs {
			if Overlaps(args, existing.signature.args) {
				return existing
			}
		}
	}
	return nil
}

func (r *Registry) addAliasLocked(alias string, def *Definition) {
	for _, d := range r.byAlias[alias] {
		if d == def {
			return
		}
	}
	if len(r.byAlias[alias]) > 0 {
		r.logger.Warn("alias shared by several commands",
			zap.String("alias", alias),
			zap.String("command", def.Name()))
	}
	r.byAlias[alias] = append(r.byAlias[alias], def)
}

func (r *Registry) removeAliasLocked(alias string, def *Definition) {
	defs := r.byAlias[alias]
	for i, d := range defs {
		if d == def {
			defs = append(defs[:i:i], defs[i+1:]...)
			break
		}
	}
	if len(defs) == 0 {
		delete(r.byAlias, alias)
		return
	}
	r.byAlias[alias] = defs
}

// Remove deletes def from the name and alias maps. It reports whether def
// was registered.
func (r *Registry) Remove(def *Definition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := r.byName[def.Name()]
	found := false
	for i, d := range defs {
		if d == def {
			defs = append(defs[:i:i], defs[i+1:]...)
			found = true
			break
		}
	}
	if len(defs) == 0 {
		delete(r.byName, def.Name())
	} else {
		r.byName[def.Name()] = defs
	}
	for _, alias := range def.Aliases() {
		r.removeAliasLocked(alias, def)
	}
	if found {
		r.logger.Debug("removed command", zap.String("command", def.Name()), zap.String("format", def.Format()))
	}
	return found
}

// RemoveName deletes every definition registered under name and returns
// how many were removed.
func (r *Registry) RemoveName(name string) int {
	r.mu.RLock()
	defs := append([]*Definition(nil), r.byName[name]...)
	r.mu.RUnlock()

	n := 0
	for _, d := range defs {
		if r.Remove(d) {
			n++
		}
	}
	return n
}

// SetAliases replaces the aliases of a registered definition and updates
// the alias map to match.
func (r *Registry) SetAliases(def *Definition, aliases []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.containsLocked(def) {
		return fmt.Errorf("set aliases of %s: %w", def.Name(), ErrNotRegistered)
	}
	old := def.setAliases(aliases)
	for _, alias := range old {
		r.removeAliasLocked(alias, def)
	}
	for _, alias := range def.Aliases() {
		r.addAliasLocked(alias, def)
	}
	return nil
}

// Resolve returns the candidates for name: the definitions registered under
// that name, or, if there are none, those aliased to it.
func (r *Registry) Resolve(name string) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs, ok := r.byName[name]
	if !ok {
		defs = r.byAlias[name]
	}
	return append([]*Definition(nil), defs...)
}

// Commands returns a copy of the name map.
func (r *Registry) Commands() map[string][]*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyIndex(r.byName)
}

// Aliases returns a copy of the alias map.
func (r *Registry) Aliases() map[string][]*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyIndex(r.byAlias)
}

// List returns all registered definitions sorted by name, overloads in
// registration order.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []*Definition
	for _, name := range names {
		result = append(result, r.byName[name]...)
	}
	return result
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, defs := range r.byName {
		n += len(defs)
	}
	return n
}

func copyIndex(src map[string][]*Definition) map[string][]*Definition {
	out := make(map[string][]*Definition, len(src))
	for k, v := range src {
		out[k] = append([]*Definition(nil), v...)
	}
	return out
}
