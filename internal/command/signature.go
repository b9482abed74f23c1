package command

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern fragments used to build a signature matcher. RE2 has no
// look-ahead, so "at least one non-space character up to the end" is
// spelled .*\S.* instead of a negative look-ahead.
const (
	requiredFragment          = `\S+`
	optionalFragment          = `(\s+\S+)?`
	firstOptionalFragment     = `(\S+)?`
	restFragment              = `.*\S.*`
	optionalRestFragment      = `(\s+` + restFragment + `)?`
	firstOptionalRestFragment = `(` + restFragment + `)?`
	separatorFragment         = `\s+`
)

// Argument is one classified slot of a command format.
type Argument struct {
	Name     string `json:"name"`
	Dynamic  bool   `json:"dynamic"`
	Required bool   `json:"required"`
	Rest     bool   `json:"rest"`
}

// String renders the argument back in format syntax.
func (a Argument) String() string {
	switch {
	case !a.Dynamic:
		return a.Name
	case a.Rest && a.Required:
		return "{" + a.Name + "}"
	case a.Rest:
		return "(" + a.Name + ")"
	case a.Required:
		return "<" + a.Name + ">"
	default:
		return "[" + a.Name + "]"
	}
}

// Signature is the compiled form of a command format: the ordered
// arguments plus an anchored matcher over the space-joined positional
// tokens.
type Signature struct {
	args    []Argument
	pattern *regexp.Regexp
}

// ParseSignature tokenises format, drops a leading token equal to name and
// compiles the remaining tokens. Optional and rest captures must be the
// last token.
func ParseSignature(name, format string) (*Signature, error) {
	tokens := strings.Fields(format)
	if len(tokens) > 0 && tokens[0] == name {
		tokens = tokens[1:]
	}

	args := make([]Argument, 0, len(tokens))
	for i, tok := range tokens {
		arg, err := classify(tok)
		if err != nil {
			return nil, &CreationError{Command: name, Format: format, Reason: err.Error()}
		}
		last := i == len(tokens)-1
		if (!arg.Required || arg.Rest) && !last {
			return nil, &CreationError{
				Command: name,
				Format:  format,
				Reason:  fmt.Sprintf("%s can only be the last token of the format", bracketKind(arg)),
			}
		}
		args = append(args, arg)
	}

	pattern, err := regexp.Compile(buildPattern(args))
	if err != nil {
		return nil, &CreationError{Command: name, Format: format, Reason: fmt.Sprintf("compile matcher: %v", err)}
	}
	return &Signature{args: args, pattern: pattern}, nil
}

func classify(tok string) (Argument, error) {
	if len(tok) < 2 {
		return Argument{Name: tok, Required: true}, nil
	}
	first, last := tok[0], tok[len(tok)-1]
	inner := tok[1 : len(tok)-1]

	var arg Argument
	switch {
	case first == '<' && last == '>':
		arg = Argument{Name: inner, Dynamic: true, Required: true}
	case first == '[' && last == ']':
		arg = Argument{Name: inner, Dynamic: true}
	case first == '{' && last == '}':
		arg = Argument{Name: inner, Dynamic: true, Required: true, Rest: true}
	case first == '(' && last == ')':
		arg = Argument{Name: inner, Dynamic: true, Rest: true}
	default:
		return Argument{Name: tok, Required: true}, nil
	}
	if strings.TrimSpace(arg.Name) == "" {
		return Argument{}, fmt.Errorf("%q has an empty argument name", tok)
	}
	return arg, nil
}

func bracketKind(a Argument) string {
	switch {
	case a.Rest && a.Required:
		return "{} statements"
	case a.Rest:
		return "() statements"
	default:
		return "[] statements"
	}
}

func buildPattern(args []Argument) string {
	var b strings.Builder
	b.WriteString("^")
	for i, arg := range args {
		if !arg.Required {
			switch {
			case i == 0 && arg.Rest:
				b.WriteString(firstOptionalRestFragment)
			case i == 0:
				b.WriteString(firstOptionalFragment)
			case arg.Rest:
				b.WriteString(optionalRestFragment)
			default:
				b.WriteString(optionalFragment)
			}
			continue
		}

		if i > 0 {
			b.WriteString(separatorFragment)
		}
		switch {
		case !arg.Dynamic:
			b.WriteString(regexp.QuoteMeta(arg.Name))
		case arg.Rest:
			b.WriteString(restFragment)
		default:
			b.WriteString(requiredFragment)
		}
	}
	b.WriteString("$")
	return b.String()
}

// Arguments returns a copy of the compiled arguments in format order.
func (s *Signature) Arguments() []Argument {
	out := make([]Argument, len(s.args))
	copy(out, s.args)
	return out
}

// Pattern returns the source of the compiled matcher.
func (s *Signature) Pattern() string { return s.pattern.String() }

// Match reports whether the space-joined tokens satisfy the signature.
func (s *Signature) Match(tokens []string) bool {
	return s.pattern.MatchString(strings.Join(tokens, " "))
}

// Bind maps the positional tokens onto the dynamic arguments. Names are
// lower-cased; a rest argument swallows every remaining token and ends the
// walk. Callers are expected to have matched the tokens first.
func (s *Signature) Bind(tokens []string) Args {
	out := make(Args, len(s.args))
	for i, tok := range tokens {
		if i >= len(s.args) {
			break
		}
		arg := s.args[i]
		if !arg.Dynamic {
			continue
		}
		key := strings.ToLower(arg.Name)
		if arg.Rest {
			out[key] = strings.Join(tokens[i:], " ")
			return out
		}
		out[key] = tok
	}
	return out
}

// String renders the signature in format syntax, without the command name.
func (s *Signature) String() string {
	parts := make([]string, len(s.args))
	for i, a := range s.args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
