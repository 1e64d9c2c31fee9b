package query

import "sort"

// IDField is the store's canonical primary key field.
const IDField = "_id"

// NormalizedField rewrites "id" to IDField.
func NormalizedField(field string) string {
	if field == "id" {
		return IDField
	}
	return field
}

// Criteria is a canonical filter tree. Top-level fields are ANDed; an empty
// Criteria matches everything.
type Criteria map[string]Predicate

// Fields returns the sorted top-level field names.
func (c Criteria) Fields() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Native converts the criteria to nested map[string]any / []any values.
func (c Criteria) Native() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v.Native()
	}
	return out
}

// Clone returns a deep copy.
func (c Criteria) Clone() Criteria {
	return Criteria(cloneFields(c))
}

// Equal compares two criteria structurally.
func (c Criteria) Equal(o Criteria) bool {
	return Document(c).Equal(Document(o))
}
