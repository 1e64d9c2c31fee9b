package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

// Direction is a sort direction: 1 ascending, -1 descending.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// NaturalOrder is the store-native ordering hint. It is never rewritten.
const NaturalOrder = "$natural"

// SortEntry orders by one field.
type SortEntry struct {
	Field     string
	Direction Direction
}

// SortSpec is an ordered sequence of sort entries, primary key first.
type SortSpec []SortEntry

// Asc and Desc build sort entries.
func Asc(field string) SortEntry  { return SortEntry{Field: field, Direction: Ascending} }
func Desc(field string) SortEntry { return SortEntry{Field: field, Direction: Descending} }

// Equal reports whether both specs list the same entries in the same order.
func (s SortSpec) Equal(o SortSpec) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Reverse flips every direction.
func (s SortSpec) Reverse() SortSpec {
	out := make(SortSpec, len(s))
	for i, e := range s {
		out[i] = SortEntry{Field: e.Field, Direction: -e.Direction}
	}
	return out
}

// Compose lets other's keys take precedence: each of other's entries
// replaces any entry on the same field, and other's entries lead in the
// order given. Untouched entries of s follow in their original order.
func (s SortSpec) Compose(other SortSpec) SortSpec {
	out := append(SortSpec{}, s...)
	for i := len(other) - 1; i >= 0; i-- {
		e := other[i]
		kept := out[:0:0]
		for _, cur := range out {
			if cur.Field != e.Field {
				kept = append(kept, cur)
			}
		}
		out = append(SortSpec{e}, kept...)
	}
	return out
}

// ParseDirection reads "ASC"/"DESC" case-insensitively. Empty input is
// ascending; anything other than ASC is descending.
func ParseDirection(s string) Direction {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "asc") {
		return Ascending
	}
	return Descending
}

// NormalizeSort converts raw sort input into a SortSpec. Accepted inputs:
// a SortSpec or []SortEntry, a sort Token or a slice of them, a string like
// "a desc, b", raw pairs such as [][]any{{"age", -1}}, a bson.D, or a
// mapping (keys in lexical order). Nil or empty input yields nil.
func NormalizeSort(v any) (SortSpec, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case SortSpec:
		return emptyAsNil(append(SortSpec{}, s...)), nil
	case []SortEntry:
		return emptyAsNil(append(SortSpec{}, s...)), nil
	case SortEntry:
		return SortSpec{s}, nil
	case Token:
		e, err := sortToken(s)
		if err != nil {
			return nil, err
		}
		return SortSpec{e}, nil
	case []Token:
		out := make(SortSpec, 0, len(s))
		for _, t := range s {
			e, err := sortToken(t)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return emptyAsNil(out), nil
	case string:
		return parseSortString(s), nil
	case bson.D:
		out := make(SortSpec, 0, len(s))
		for _, e := range s {
			out = append(out, SortEntry{Field: e.Key, Direction: directionOf(e.Value)})
		}
		return emptyAsNil(out), nil
	}

	if items, ok := sequence(v); ok {
		out := make(SortSpec, 0, len(items))
		for _, item := range items {
			e, err := sortItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return emptyAsNil(out), nil
	}

	if es, ok := entries(v); ok {
		out := make(SortSpec, 0, len(es))
		for _, e := range es {
			name, ok := keyName(e.key)
			if !ok {
				return nil, fmt.Errorf("%w: sort key %T", ErrInvalidRequestShape, e.key)
			}
			out = append(out, SortEntry{Field: name, Direction: directionOf(e.value)})
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
		return emptyAsNil(out), nil
	}

	return nil, fmt.Errorf("%w: unsupported sort input %T", ErrInvalidRequestShape, v)
}

func sortToken(t Token) (SortEntry, error) {
	e, ok := t.SortEntry()
	if !ok {
		return SortEntry{}, fmt.Errorf("%w: %s is not a sort token", ErrInvalidRequestShape, t)
	}
	return e, nil
}

// sortItem handles one element of a sort sequence: a token, an entry, a
// "field dir" string or a [field, direction] pair.
func sortItem(item any) (SortEntry, error) {
	switch it := item.(type) {
	case Token:
		return sortToken(it)
	case SortEntry:
		return it, nil
	case string:
		return parseSortPiece(it), nil
	}
	pair, ok := sequence(item)
	if !ok || len(pair) == 0 || len(pair) > 2 {
		return SortEntry{}, fmt.Errorf("%w: sort item %v", ErrInvalidRequestShape, item)
	}
	e := SortEntry{Field: fmt.Sprint(pair[0]), Direction: Ascending}
	if len(pair) == 2 {
		e.Direction = directionOf(pair[1])
	}
	return e, nil
}

func directionOf(v any) Direction {
	if s, ok := v.(string); ok {
		if n, err := cast.ToIntE(s); err == nil {
			v = n
		} else {
			return ParseDirection(s)
		}
	}
	if cast.ToInt(v) < 0 {
		return Descending
	}
	return Ascending
}

func parseSortString(s string) SortSpec {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	pieces := strings.Split(s, ",")
	out := make(SortSpec, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		out = append(out, parseSortPiece(piece))
	}
	return emptyAsNil(out)
}

func parseSortPiece(piece string) SortEntry {
	parts := strings.Fields(piece)
	if len(parts) == 0 {
		return SortEntry{Direction: Ascending}
	}
	dir := ""
	if len(parts) > 1 {
		dir = parts[1]
	}
	return SortEntry{Field: parts[0], Direction: ParseDirection(dir)}
}

func emptyAsNil(s SortSpec) SortSpec {
	if len(s) == 0 {
		return nil
	}
	return s
}

// ParseSort parses "field dir, field dir" strings.
func ParseSort(s string) SortSpec {
	return parseSortString(s)
}
