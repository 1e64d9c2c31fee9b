package query

import (
	"sort"
	"strings"
)

// Kind identifies the shape of a Predicate.
type Kind uint8

const (
	// KindScalar is an equality predicate on an opaque value.
	KindScalar Kind = iota
	// KindList is a bare sequence of values. Normalization wraps lists
	// under field keys into {"$in": list}; lists remain bare as operator values.
	KindList
	// KindOperators maps operator sigils ("$gt", "$in", ...) to predicates.
	KindOperators
	// KindDocument maps sub-field names to predicates (a nested path).
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindOperators:
		return "operators"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Predicate is one of: a scalar, a list, an operator map or a nested document.
// The zero value is a nil scalar.
type Predicate struct {
	kind   Kind
	value  any
	list   []any
	fields map[string]Predicate
}

// Scalar returns an equality predicate.
func Scalar(v any) Predicate { return Predicate{kind: KindScalar, value: v} }

// List returns a bare list predicate.
func List(items []any) Predicate {
	return Predicate{kind: KindList, list: append([]any{}, items...)}
}

// Operators returns an operator map predicate. Keys should start with "$".
func Operators(ops map[string]Predicate) Predicate {
	return Predicate{kind: KindOperators, fields: cloneFields(ops)}
}

// Document returns a nested document predicate.
func Document(fields map[string]Predicate) Predicate {
	return Predicate{kind: KindDocument, fields: cloneFields(fields)}
}

// In is shorthand for Operators({"$in": List(items)}).
func In(items ...any) Predicate {
	return Predicate{kind: KindOperators, fields: map[string]Predicate{"$in": List(items)}}
}

// Kind returns the predicate's shape.
func (p Predicate) Kind() Kind { return p.kind }

// Value returns the scalar value, or nil for other kinds.
func (p Predicate) Value() any { return p.value }

// Items returns the members of a list predicate. A scalar yields a
// singleton; maps yield nil.
func (p Predicate) Items() []any {
	switch p.kind {
	case KindList:
		return append([]any{}, p.list...)
	case KindScalar:
		return []any{p.value}
	default:
		return nil
	}
}

// Get returns the predicate under an operator or sub-field key.
func (p Predicate) Get(key string) (Predicate, bool) {
	v, ok := p.fields[key]
	return v, ok
}

// Keys returns the sorted keys of an operator map or document.
func (p Predicate) Keys() []string {
	keys := make([]string, 0, len(p.fields))
	for k := range p.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsMap reports whether the predicate is an operator map or a document.
func (p Predicate) IsMap() bool {
	return p.kind == KindOperators || p.kind == KindDocument
}

// Native converts the predicate to plain Go values: scalars as-is, lists as
// []any and maps as map[string]any.
func (p Predicate) Native() any {
	switch p.kind {
	case KindList:
		out := make([]any, len(p.list))
		copy(out, p.list)
		return out
	case KindOperators, KindDocument:
		out := make(map[string]any, len(p.fields))
		for k, v := range p.fields {
			out[k] = v.Native()
		}
		return out
	default:
		return p.value
	}
}

// Equal compares two predicates structurally. Scalars compare with numeric
// widening, so int(3) equals float64(3).
func (p Predicate) Equal(o Predicate) bool {
	if p.kind != o.kind {
		return false
	}
	switch p.kind {
	case KindScalar:
		return valuesEqual(p.value, o.value)
	case KindList:
		if len(p.list) != len(o.list) {
			return false
		}
		for i := range p.list {
			if !valuesEqual(p.list[i], o.list[i]) {
				return false
			}
		}
		return true
	default:
		if len(p.fields) != len(o.fields) {
			return false
		}
		for k, v := range p.fields {
			ov, ok := o.fields[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
}

// blank mirrors "not present": nil, empty string, empty list or empty map.
func (p Predicate) blank() bool {
	switch p.kind {
	case KindScalar:
		if p.value == nil {
			return true
		}
		s, ok := p.value.(string)
		return ok && s == ""
	case KindList:
		return len(p.list) == 0
	default:
		return len(p.fields) == 0
	}
}

func (p Predicate) clone() Predicate {
	switch p.kind {
	case KindList:
		return List(p.list)
	case KindOperators, KindDocument:
		return Predicate{kind: p.kind, fields: cloneFields(p.fields)}
	default:
		return p
	}
}

// membership expresses a scalar or list as {"$in": items}.
func (p Predicate) membership() Predicate {
	return Predicate{kind: KindOperators, fields: map[string]Predicate{"$in": List(p.Items())}}
}

func cloneFields(in map[string]Predicate) map[string]Predicate {
	out := make(map[string]Predicate, len(in))
	for k, v := range in {
		out[k] = v.clone()
	}
	return out
}

// mapKind classifies a map: all keys operator sigils means an operator map.
func mapKind(fields map[string]Predicate) Kind {
	if len(fields) == 0 {
		return KindDocument
	}
	for k := range fields {
		if !IsOperatorKey(k) {
			return KindDocument
		}
	}
	return KindOperators
}

// IsOperatorKey reports whether key is an operator sigil such as "$in".
func IsOperatorKey(key string) bool {
	return strings.HasPrefix(key, "$")
}

// rawPredicate wraps a token value without membership conversion.
func rawPredicate(v any) Predicate {
	if items, ok := sequence(v); ok {
		return List(items)
	}
	return Scalar(v)
}
