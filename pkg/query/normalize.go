package query

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Schema is the model metadata consulted during normalization. A nil Schema
// disables identifier coercion and discriminator scoping.
type Schema interface {
	// IsSharedCollectionSubtype reports whether records of this model share a
	// collection with sibling subtypes.
	IsSharedCollectionSubtype() bool
	DiscriminatorField() string
	DiscriminatorValue() string
	// PrimaryKeyTypedFields lists the (dotted) fields holding identifiers.
	PrimaryKeyTypedFields() []string
	// CoerceIdentifier converts text into the store's identifier type.
	CoerceIdentifier(text string) (any, error)
}

// Option keys recognized in a raw request.
const (
	keyFields     = "fields"
	keySelect     = "select"
	keySkip       = "skip"
	keyOffset     = "offset"
	keyLimit      = "limit"
	keySort       = "sort"
	keyOrder      = "order"
	keyConditions = "conditions"
)

func isOptionKey(key string) bool {
	switch key {
	case keyFields, keySelect, keySkip, keyOffset, keyLimit, keySort, keyOrder:
		return true
	}
	return false
}

// coercibleOperators carry identifier values under an identifier typed field.
var coercibleOperators = map[string]bool{
	"$eq": true, "$ne": true, "$in": true, "$nin": true, "$all": true,
	"$gt": true, "$gte": true, "$lt": true, "$lte": true,
}

// New normalizes a raw request into a Spec. raw must be mapping-like (see
// package docs); a nil raw request is treated as empty.
func New(schema Schema, raw any) (Spec, error) {
	es, ok := entries(raw)
	if !ok {
		return Spec{}, fmt.Errorf("%w: got %T", ErrInvalidRequestShape, raw)
	}

	n := normalizer{schema: schema}
	opts := map[string]any{}
	var conds []entry
	for _, e := range es {
		if name, ok := keyName(e.key); ok {
			if isOptionKey(name) {
				opts[name] = e.value
				continue
			}
			if name == keyConditions {
				nested, err := n.conditions(e.value)
				if err != nil {
					return Spec{}, err
				}
				conds = append(nested, conds...)
				continue
			}
		}
		conds = append(conds, e)
	}

	criteria, err := n.criteria(conds, "")
	if err != nil {
		return Spec{}, err
	}
	n.scopeDiscriminator(criteria)

	options, err := normalizeOptions(opts)
	if err != nil {
		return Spec{}, err
	}
	return Spec{criteria: criteria, options: options}, nil
}

// NormalizeCriteria normalizes a raw filter without option handling. Option
// keys are treated as ordinary fields.
func NormalizeCriteria(schema Schema, raw any) (Criteria, error) {
	n := normalizer{schema: schema}
	es, err := n.conditions(raw)
	if err != nil {
		return nil, err
	}
	c, err := n.criteria(es, "")
	if err != nil {
		return nil, err
	}
	n.scopeDiscriminator(c)
	return c, nil
}

type normalizer struct {
	schema Schema
}

// conditions flattens a "conditions" value, following nested "conditions" keys.
func (n normalizer) conditions(v any) ([]entry, error) {
	es, ok := entries(v)
	if !ok {
		return nil, fmt.Errorf("%w: conditions must be a mapping, got %T", ErrInvalidRequestShape, v)
	}
	var out []entry
	for _, e := range es {
		if name, ok := keyName(e.key); ok && name == keyConditions {
			nested, err := n.conditions(e.value)
			if err != nil {
				return nil, err
			}
			out = append(nested, out...)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func keyName(key any) (string, bool) {
	switch k := key.(type) {
	case string:
		return k, true
	case Field:
		return string(k), true
	default:
		return "", false
	}
}

func (n normalizer) criteria(es []entry, parent string) (Criteria, error) {
	out := Criteria{}
	for _, e := range es {
		if tok, ok := e.key.(Token); ok {
			if tok.Operator.IsSort() {
				return nil, fmt.Errorf("%w: sort token %s used as a condition", ErrInvalidRequestShape, tok)
			}
			for field, frag := range tok.Criteria(e.value) {
				if existing, ok := out[field]; ok && existing.kind == KindOperators {
					for op, v := range frag.fields {
						existing.fields[op] = v
					}
					continue
				}
				out[field] = frag
			}
			continue
		}

		name, ok := keyName(e.key)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidRequestShape, e.key)
		}
		field := NormalizedField(name)
		path := parent
		if !IsOperatorKey(field) {
			path = joinPath(parent, field)
		}
		coerce := n.identifierTyped(path) && (!IsOperatorKey(field) || coercibleOperators[field])

		p, err := n.predicate(field, path, coerce, e.value)
		if err != nil {
			return nil, err
		}
		out[field] = p
	}
	return out, nil
}

func (n normalizer) predicate(field, path string, coerce bool, v any) (Predicate, error) {
	switch val := v.(type) {
	case Predicate:
		return val.clone(), nil
	case string:
		if coerce {
			id, err := n.coerce(path, val)
			if err != nil {
				return Predicate{}, err
			}
			return Scalar(id), nil
		}
		return Scalar(val), nil
	case time.Time:
		return Scalar(utc(val)), nil
	}

	if isMapping(v) {
		es, _ := entries(v)
		sub, err := n.criteria(es, path)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{kind: mapKind(sub), fields: sub}, nil
	}

	if items, ok := sequence(v); ok {
		if coerce {
			for i, item := range items {
				s, ok := item.(string)
				if !ok {
					continue
				}
				id, err := n.coerce(path, s)
				if err != nil {
					return Predicate{}, err
				}
				items[i] = id
			}
		}
		if IsOperatorKey(field) {
			return List(items), nil
		}
		return In(items...), nil
	}

	return Scalar(v), nil
}

func (n normalizer) coerce(path, text string) (any, error) {
	id, err := n.schema.CoerceIdentifier(text)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidIdentifier, path, err)
	}
	return id, nil
}

func (n normalizer) identifierTyped(path string) bool {
	if n.schema == nil || path == "" {
		return false
	}
	return slices.Contains(n.schema.PrimaryKeyTypedFields(), path)
}

// scopeDiscriminator adds the subtype discriminator unless the caller already
// constrained that field.
func (n normalizer) scopeDiscriminator(c Criteria) {
	if n.schema == nil || !n.schema.IsSharedCollectionSubtype() {
		return
	}
	field := n.schema.DiscriminatorField()
	if field == "" {
		return
	}
	if _, ok := c[field]; ok {
		return
	}
	c[field] = Scalar(n.schema.DiscriminatorValue())
}

func joinPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return strings.Join([]string{parent, field}, ".")
}
