package memory

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/nimburion/querykit/pkg/query"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnsupportedOperator is returned for operators the in-memory matcher
// cannot evaluate, such as $where and $near.
var ErrUnsupportedOperator = errors.New("memory: unsupported operator")

// Match reports whether doc satisfies every field predicate of c.
func Match(doc Document, c query.Criteria) (bool, error) {
	for _, field := range c.Fields() {
		value, present := lookup(doc, field)
		ok, err := matchPredicate(value, present, c[field])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// lookup resolves a dotted path through nested documents. Arrays along the
// path are not traversed.
func lookup(doc Document, path string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case bson.M:
		return m, true
	case bson.D:
		return m.Map(), true
	}
	return nil, false
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case bson.A:
		return a, true
	case nil, []byte, bson.D:
		return nil, false
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

func matchPredicate(value any, present bool, p query.Predicate) (bool, error) {
	switch p.Kind() {
	case query.KindScalar:
		return matchValue(value, present, p.Value())
	case query.KindList:
		arr, ok := asArray(value)
		return ok && deepEqual(arr, p.Items()), nil
	case query.KindDocument:
		return present && deepEqual(value, p.Native()), nil
	case query.KindOperators:
		for _, op := range p.Keys() {
			arg, _ := p.Get(op)
			ok, err := matchOperator(op, value, present, arg)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

// matchValue is equality with array membership and regex support.
func matchValue(value any, present bool, want any) (bool, error) {
	if want == nil {
		return !present || value == nil, nil
	}
	if re, ok, err := pattern(want); ok || err != nil {
		if err != nil {
			return false, err
		}
		return anyElement(value, func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	}
	if !present {
		return false, nil
	}
	if deepEqual(value, want) {
		return true, nil
	}
	if arr, ok := asArray(value); ok {
		for _, item := range arr {
			if deepEqual(item, want) {
				return true, nil
			}
		}
	}
	return false, nil
}

func matchOperator(op string, value any, present bool, arg query.Predicate) (bool, error) {
	switch op {
	case "$eq":
		return matchPredicate(value, present, arg)
	case "$ne":
		ok, err := matchPredicate(value, present, arg)
		return !ok, err
	case "$in":
		return matchAny(value, present, members(arg))
	case "$nin":
		ok, err := matchAny(value, present, members(arg))
		return !ok, err
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		bound := arg.Native()
		return anyElement(value, func(v any) bool {
			c, ok := query.CompareValues(v, bound)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			default:
				return c <= 0
			}
		}), nil
	case "$exists":
		want, err := cast.ToBoolE(arg.Native())
		if err != nil {
			return false, fmt.Errorf("memory: $exists: %w", err)
		}
		return present == want, nil
	case "$size":
		n, err := cast.ToIntE(arg.Native())
		if err != nil {
			return false, fmt.Errorf("memory: $size: %w", err)
		}
		arr, ok := asArray(value)
		return ok && len(arr) == n, nil
	case "$all":
		arr, ok := asArray(value)
		if !ok {
			return false, nil
		}
		wants := members(arg)
		if len(wants) == 0 {
			return false, nil
		}
		for _, want := range wants {
			if !containsDeep(arr, want) {
				return false, nil
			}
		}
		return true, nil
	case "$mod":
		return matchMod(value, present, members(arg))
	case "$not":
		ok, err := matchPredicate(value, present, arg)
		return !ok, err
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
}

func members(p query.Predicate) []any {
	if p.Kind() == query.KindList {
		return p.Items()
	}
	return []any{p.Native()}
}

// matchAny is true when value equals any candidate. No candidates matches nothing.
func matchAny(value any, present bool, candidates []any) (bool, error) {
	for _, want := range candidates {
		ok, err := matchValue(value, present, want)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchMod(value any, present bool, args []any) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("memory: $mod needs [divisor, remainder], got %v", args)
	}
	divisor, err := cast.ToFloat64E(args[0])
	if err != nil || divisor == 0 {
		return false, fmt.Errorf("memory: $mod divisor %v", args[0])
	}
	remainder, err := cast.ToFloat64E(args[1])
	if err != nil {
		return false, fmt.Errorf("memory: $mod remainder %v", args[1])
	}
	if !present {
		return false, nil
	}
	return anyElement(value, func(v any) bool {
		n, err := cast.ToFloat64E(v)
		if err != nil {
			return false
		}
		_, isString := v.(string)
		return !isString && math.Mod(math.Trunc(n), math.Trunc(divisor)) == math.Trunc(remainder)
	}), nil
}

// anyElement applies fn to value, or to each element when value is an array.
func anyElement(value any, fn func(any) bool) bool {
	if fn(value) {
		return true
	}
	if arr, ok := asArray(value); ok {
		for _, item := range arr {
			if fn(item) {
				return true
			}
		}
	}
	return false
}

func pattern(v any) (*regexp.Regexp, bool, error) {
	switch re := v.(type) {
	case *regexp.Regexp:
		return re, true, nil
	case primitive.Regex:
		flags := ""
		for _, o := range re.Options {
			if strings.ContainsRune("imsU", o) {
				flags += string(o)
			}
		}
		expr := re.Pattern
		if flags != "" {
			expr = "(?" + flags + ")" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, false, fmt.Errorf("memory: regex %q: %w", re.Pattern, err)
		}
		return compiled, true, nil
	}
	return nil, false, nil
}

func containsDeep(list []any, v any) bool {
	for _, item := range list {
		if deepEqual(item, v) {
			return true
		}
	}
	return false
}

// deepEqual compares stored values, widening numbers at the leaves.
func deepEqual(a, b any) bool {
	if ma, ok := asMap(a); ok {
		mb, ok := asMap(b)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !deepEqual(va, vb) {
				return false
			}
		}
		return true
	}
	if aa, ok := asArray(a); ok {
		ab, ok := asArray(b)
		if !ok || len(aa) != len(ab) {
			return false
		}
		for i := range aa {
			if !deepEqual(aa[i], ab[i]) {
				return false
			}
		}
		return true
	}
	return query.ValuesEqual(a, b)
}
