package command

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// shortFlagsRe matches combined short flags such as "-f" or "-abc".
	shortFlagsRe = regexp.MustCompile(`^-\w+$`)
	// longFlagRe matches long flags such as "--force".
	longFlagRe = regexp.MustCompile(`^--\w+$`)
	// longFlagValueRe matches long flags with a value such as "--name=ted".
	longFlagValueRe = regexp.MustCompile(`^--\w+=\S+$`)
)

// flagEscape marks a token that looks like a flag but must stay positional.
const flagEscape = `\-`

// Args holds bound positional arguments keyed by lower-cased argument name.
type Args map[string]string

// Get returns the bound value, or "" when the argument was not supplied.
func (a Args) Get(name string) string {
	return a[strings.ToLower(name)]
}

// Lookup returns the bound value and whether the argument was supplied.
func (a Args) Lookup(name string) (string, bool) {
	v, ok := a[strings.ToLower(name)]
	return v, ok
}

// Flags holds parsed flags. A flag given without a value maps to "".
type Flags map[string]string

// Has reports whether the flag was supplied.
func (f Flags) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Value returns the flag value; ok is false when the flag is absent or was
// given without a value.
func (f Flags) Value(name string) (string, bool) {
	v, ok := f[name]
	return v, ok && v != ""
}

// Keys returns the flag names in sorted order.
func (f Flags) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FlagSpec is one flag a command accepts.
type FlagSpec struct {
	Name       string `json:"name"`
	NeedsValue bool   `json:"needs_value"`
}

// String renders the flag in declaration syntax.
func (f FlagSpec) String() string {
	switch {
	case f.NeedsValue:
		return "--" + f.Name + "=value"
	case len(f.Name) == 1:
		return "-" + f.Name
	default:
		return "--" + f.Name
	}
}

// ParseFlagSpecs converts flag declarations ("-x", "-xyz", "--name",
// "--name=value") into specs. Duplicate names keep their first declaration.
func ParseFlagSpecs(decls []string) ([]FlagSpec, error) {
	var specs []FlagSpec
	seen := make(map[string]bool)
	add := func(spec FlagSpec) {
		if seen[spec.Name] {
			return
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}

	for _, d := range decls {
		switch {
		case shortFlagsRe.MatchString(d):
			for _, c := range d[1:] {
				add(FlagSpec{Name: string(c)})
			}
		case longFlagRe.MatchString(d):
			add(FlagSpec{Name: d[2:]})
		case longFlagValueRe.MatchString(d):
			add(FlagSpec{Name: d[2:strings.Index(d, "=")], NeedsValue: true})
		default:
			return nil, fmt.Errorf("invalid flag declaration %q", d)
		}
	}
	return specs, nil
}

// Split separates raw tokens into flags and positional arguments, keeping
// the relative order of positionals. When processFlags is false every token
// is positional.
func Split(argv []string, processFlags bool) (Flags, []string) {
	flags := make(Flags)
	positionals := make([]string, 0, len(argv))

	for _, tok := range argv {
		if processFlags {
			switch {
			case shortFlagsRe.MatchString(tok):
				for _, c := range tok[1:] {
					flags[string(c)] = ""
				}
				continue
			case longFlagRe.MatchString(tok):
				flags[tok[2:]] = ""
				continue
			case longFlagValueRe.MatchString(tok):
				eq := strings.Index(tok, "=")
				flags[tok[2:eq]] = tok[eq+1:]
				continue
			}
		}
		if strings.HasPrefix(tok, flagEscape) {
			tok = tok[1:]
		}
		positionals = append(positionals, tok)
	}
	return flags, positionals
}
