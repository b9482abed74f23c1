package command

// Overlaps reports whether two signatures registered under the same name
// could both accept some argument vector, which would make dispatch
// ambiguous. The relation is symmetric.
func Overlaps(a, b []Argument) bool {
	if len(a) == len(b) {
		return overlapsSameLength(a, b)
	}

	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}

	// An empty argument list can never satisfy a command that requires at
	// least one argument.
	if len(shorter) == 0 {
		return !longer[0].Required
	}

	last := len(shorter) - 1
	for i := 0; i < last; i++ {
		if shorter[i] != longer[i] {
			return false
		}
	}

	s, l, next := shorter[last], longer[last], longer[last+1]
	return s.Rest || (s.Required && l.Required && !next.Required)
}

func overlapsSameLength(a, b []Argument) bool {
	if len(a) == 0 {
		return true
	}

	last := len(a) - 1
	for i := 0; i < last; i++ {
		if a[i] != b[i] {
			return false
		}
	}

	x, y := a[last], b[last]
	if x.Rest || y.Rest {
		return true
	}
	// Same shape up to a required-versus-optional final slot: the argument
	// count tells the two apart.
	return x.Required == y.Required
}
