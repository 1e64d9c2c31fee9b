package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// Options carries projection, pagination and sort. The zero value means all
// fields, no skip, no limit and no imposed order. Skip and limit remember
// whether they were set so composition can tell "0" from "absent".
type Options struct {
	fields   []string
	skip     int
	limit    int
	sort     SortSpec
	hasSkip  bool
	hasLimit bool
}

// Option configures Options.
type Option func(*Options)

// WithFields restricts the projection. No names means no projection.
func WithFields(fields ...string) Option {
	return func(o *Options) { o.fields = normalizeFieldList(fields) }
}

// WithSkip sets the number of records to skip. Negative values clamp to 0.
func WithSkip(n int) Option {
	return func(o *Options) { o.skip, o.hasSkip = max(n, 0), true }
}

// WithLimit sets the maximum number of records; 0 is unbounded.
func WithLimit(n int) Option {
	return func(o *Options) { o.limit, o.hasLimit = max(n, 0), true }
}

// WithSort sets the sort order.
func WithSort(entries ...SortEntry) Option {
	return func(o *Options) { o.sort = emptyAsNil(append(SortSpec{}, entries...)) }
}

// NewOptions builds Options from functional options.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fields returns the projection, or nil for all fields.
func (o Options) Fields() []string {
	if o.fields == nil {
		return nil
	}
	return append([]string{}, o.fields...)
}

func (o Options) Skip() int      { return o.skip }
func (o Options) Limit() int     { return o.limit }
func (o Options) HasSkip() bool  { return o.hasSkip }
func (o Options) HasLimit() bool { return o.hasLimit }

// Sort returns the sort order, or nil when none is imposed.
func (o Options) Sort() SortSpec {
	if o.sort == nil {
		return nil
	}
	return append(SortSpec{}, o.sort...)
}

// IsZero reports whether no option was given.
func (o Options) IsZero() bool {
	return o.fields == nil && len(o.sort) == 0 && !o.hasSkip && !o.hasLimit
}

// Equal compares effective values; projections compare as sets.
func (o Options) Equal(other Options) bool {
	return o.skip == other.skip &&
		o.limit == other.limit &&
		o.sort.Equal(other.sort) &&
		sameFieldSet(o.fields, other.fields)
}

// Compose overlays other on o: projections union when other has one,
// skip/limit take other's value when set, and sorts compose with other's keys
// first.
func (o Options) Compose(other Options) Options {
	out := o
	out.fields = o.Fields()
	out.sort = o.Sort()
	if other.fields != nil {
		merged := append([]string{}, o.fields...)
		for _, f := range other.fields {
			if !slices.Contains(merged, f) {
				merged = append(merged, f)
			}
		}
		out.fields = merged
	}
	if other.hasSkip {
		out.skip, out.hasSkip = other.skip, true
	}
	if other.hasLimit {
		out.limit, out.hasLimit = other.limit, true
	}
	if len(other.sort) > 0 {
		out.sort = out.sort.Compose(other.sort)
	}
	return out
}

func (o Options) String() string {
	return fmt.Sprintf("fields=%v skip=%d limit=%d sort=%v", o.fields, o.skip, o.limit, o.sort)
}

// normalizeOptions reads option keys from a raw request. skip beats offset,
// sort beats order.
func normalizeOptions(raw map[string]any) (Options, error) {
	var o Options

	fields := raw[keyFields]
	if fields == nil {
		fields = raw[keySelect]
	}
	projection, err := normalizeProjection(fields)
	if err != nil {
		return Options{}, err
	}
	o.fields = projection

	if v, ok := raw[keySkip]; ok && v != nil {
		o.skip, o.hasSkip = max(cast.ToInt(v), 0), true
	} else if v, ok := raw[keyOffset]; ok && v != nil {
		o.skip, o.hasSkip = max(cast.ToInt(v), 0), true
	}
	if v, ok := raw[keyLimit]; ok && v != nil {
		o.limit, o.hasLimit = max(cast.ToInt(v), 0), true
	}

	sortInput, ok := raw[keySort]
	if !ok || sortInput == nil {
		sortInput = raw[keyOrder]
	}
	o.sort, err = NormalizeSort(sortInput)
	if err != nil {
		return Options{}, err
	}
	return o, nil
}

// normalizeProjection accepts a sequence of names or a comma separated
// string. Empty input means no projection.
func normalizeProjection(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return normalizeFieldList(strings.Split(s, ",")), nil
	}
	items, ok := sequence(v)
	if !ok {
		return nil, fmt.Errorf("%w: fields must be a list or string, got %T", ErrInvalidRequestShape, v)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if nested, ok := sequence(item); ok {
			for _, n := range nested {
				names = append(names, fmt.Sprint(n))
			}
			continue
		}
		if item != nil {
			names = append(names, fmt.Sprint(item))
		}
	}
	return normalizeFieldList(names), nil
}

func normalizeFieldList(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sameFieldSet(a, b []string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	for _, f := range a {
		if !slices.Contains(b, f) {
			return false
		}
	}
	for _, f := range b {
		if !slices.Contains(a, f) {
			return false
		}
	}
	return true
}
