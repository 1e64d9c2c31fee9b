package query

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request is a raw, loosely structured query request. Keys are field names
// (string or Field) or Tokens; values are scalars, slices or nested mappings.
type Request map[any]any

type entry struct {
	key   any
	value any
}

// entries flattens any mapping-like value into entries. String keys come
// first in lexical order, then tokens, so normalization is deterministic.
// bson.D keeps its own order.
func entries(v any) ([]entry, bool) {
	switch m := v.(type) {
	case nil:
		return nil, true
	case Request:
		return sortEntries(anyMapEntries(m)), true
	case map[any]any:
		return sortEntries(anyMapEntries(m)), true
	case map[string]any:
		return sortEntries(stringMapEntries(m)), true
	case bson.M:
		return sortEntries(stringMapEntries(m)), true
	case bson.D:
		out := make([]entry, len(m))
		for i, e := range m {
			out[i] = entry{key: e.Key, value: e.Value}
		}
		return out, true
	case Criteria:
		out := make([]entry, 0, len(m))
		for k, p := range m {
			out = append(out, entry{key: k, value: p.Native()})
		}
		return sortEntries(out), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out = append(out, entry{key: iter.Key().String(), value: iter.Value().Interface()})
	}
	return sortEntries(out), true
}

func anyMapEntries(m map[any]any) []entry {
	out := make([]entry, 0, len(m))
	for k, v := range m {
		out = append(out, entry{key: k, value: v})
	}
	return out
}

func stringMapEntries(m map[string]any) []entry {
	out := make([]entry, 0, len(m))
	for k, v := range m {
		out = append(out, entry{key: k, value: v})
	}
	return out
}

func sortEntries(es []entry) []entry {
	rank := func(e entry) int {
		if _, ok := e.key.(Token); ok {
			return 1
		}
		return 0
	}
	sort.SliceStable(es, func(i, j int) bool {
		ri, rj := rank(es[i]), rank(es[j])
		if ri != rj {
			return ri < rj
		}
		return fmt.Sprint(es[i].key) < fmt.Sprint(es[j].key)
	})
	return es
}

// isMapping reports whether v would be accepted by entries as a non-nil mapping.
func isMapping(v any) bool {
	if v == nil {
		return false
	}
	_, ok := entries(v)
	return ok
}

// sequence converts slices (other than []byte and bson.D) to []any.
// Arrays such as primitive.ObjectID are not sequences.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil, []byte, bson.D:
		return nil, false
	case []any:
		return append([]any{}, s...), true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case bson.A:
		return append([]any{}, s...), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// utc normalizes zoned timestamps. UTC values are returned untouched.
func utc(t time.Time) time.Time {
	if t.Location() == time.UTC {
		return t
	}
	return t.UTC()
}

type numberKind int

const (
	notNumber numberKind = iota
	signedNumber
	unsignedNumber
	floatNumber
)

func numberOf(v any) (reflect.Value, numberKind) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv, signedNumber
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv, unsignedNumber
	case reflect.Float32, reflect.Float64:
		return rv, floatNumber
	default:
		return rv, notNumber
	}
}

// compareNumbers orders two numbers. Integer pairs compare exactly; a float
// on either side widens both to float64.
func compareNumbers(a, b any) (c int, ok bool) {
	x, kx := numberOf(a)
	y, ky := numberOf(b)
	if kx == notNumber || ky == notNumber {
		return 0, false
	}
	switch {
	case kx == signedNumber && ky == signedNumber:
		return cmp.Compare(x.Int(), y.Int()), true
	case kx == unsignedNumber && ky == unsignedNumber:
		return cmp.Compare(x.Uint(), y.Uint()), true
	case kx == signedNumber && ky == unsignedNumber:
		if x.Int() < 0 {
			return -1, true
		}
		return cmp.Compare(uint64(x.Int()), y.Uint()), true
	case kx == unsignedNumber && ky == signedNumber:
		if y.Int() < 0 {
			return 1, true
		}
		return cmp.Compare(x.Uint(), uint64(y.Int())), true
	}
	return cmp.Compare(toFloat(x, kx), toFloat(y, ky)), true
}

func toFloat(v reflect.Value, k numberKind) float64 {
	switch k {
	case signedNumber:
		return float64(v.Int())
	case unsignedNumber:
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

// valuesEqual compares two opaque values, widening numbers and comparing
// timestamps by instant.
func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers, strings, timestamps and object ids.
// ok is false when the pair has no natural order.
func compareValues(a, b any) (int, bool) {
	if _, k := numberOf(a); k != notNumber {
		return compareNumbers(a, b)
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case primitive.DateTime:
		if y, ok := b.(primitive.DateTime); ok {
			return x.Time().Compare(y.Time()), true
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	}
	return 0, false
}

// union appends members of b missing from a, preserving order.
func union(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	for _, v := range append(append([]any{}, a...), b...) {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// intersect keeps members of a also present in b, deduplicated, in a's order.
func intersect(a, b []any) []any {
	out := []any{}
	for _, v := range a {
		if containsValue(b, v) && !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

// IsEmptyRequest reports whether raw is nil or a mapping without entries.
func IsEmptyRequest(raw any) bool {
	es, ok := entries(raw)
	return ok && len(es) == 0
}

// MergeRequests overlays the entries of each mapping, left to right, into a
// new Request. Later keys win.
func MergeRequests(raws ...any) (Request, error) {
	out := Request{}
	for _, raw := range raws {
		es, ok := entries(raw)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrInvalidRequestShape, raw)
		}
		for _, e := range es {
			out[e.key] = e.value
		}
	}
	return out, nil
}

// CompareValues orders two stored values the way composition does: numbers
// across widths, strings, timestamps and object ids. ok is false when the
// pair has no natural order.
func CompareValues(a, b any) (int, bool) { return compareValues(a, b) }

// ValuesEqual reports whether two stored values are equal under CompareValues
// or, failing that, deep equality.
func ValuesEqual(a, b any) bool { return valuesEqual(a, b) }
