package query

import "fmt"

// Spec is an immutable (Criteria, Options) pair. Accessors return copies.
type Spec struct {
	criteria Criteria
	options  Options
}

// NewSpec wraps already-normalized criteria and options.
func NewSpec(criteria Criteria, options Options) Spec {
	return Spec{criteria: criteria.Clone(), options: options}
}

// OptionsSpec is a spec with no criteria.
func OptionsSpec(opts ...Option) Spec {
	return Spec{criteria: Criteria{}, options: NewOptions(opts...)}
}

// Criteria returns a copy of the filter tree.
func (s Spec) Criteria() Criteria { return s.criteria.Clone() }

// Options returns the options.
func (s Spec) Options() Options { return s.options }

// IsEmpty reports whether the spec has neither criteria nor options.
func (s Spec) IsEmpty() bool {
	return len(s.criteria) == 0 && s.options.IsZero()
}

// Compose returns a spec enforcing both s and other. An empty s yields other.
func (s Spec) Compose(other Spec) Spec {
	if s.IsEmpty() {
		return other
	}
	return Spec{
		criteria: s.criteria.Compose(other.criteria),
		options:  s.options.Compose(other.options),
	}
}

// Equal compares criteria structurally and options by effective value.
func (s Spec) Equal(other Spec) bool {
	return s.criteria.Equal(other.criteria) && s.options.Equal(other.options)
}

func (s Spec) String() string {
	return fmt.Sprintf("criteria=%v %s", s.criteria.Native(), s.options)
}
