package finder

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/nimburion/querykit/pkg/observability/logger"
	"github.com/nimburion/querykit/pkg/observability/metrics"
	"github.com/nimburion/querykit/pkg/observability/tracing"
	"github.com/nimburion/querykit/pkg/query"
)

const scopedByPrefix = "scoped_by_"

// Option configures a Query. Options carry over to derived queries.
type Option func(*settings)

type settings struct {
	log     logger.Logger
	metrics *metrics.QueryMetrics
	system  string
}

// WithLogger logs every store call at debug level and failures at error level.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records store calls.
func WithMetrics(m *metrics.QueryMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithSystem names the backing store in spans (e.g. "mongodb").
func WithSystem(system string) Option {
	return func(s *settings) { s.system = system }
}

// Query is a lazy handle over a model and a composed spec.
//
// Records and counts are memoized at most once per Query; a failed call
// memoizes nothing. A Query is not safe for concurrent first materialization.
type Query[T any] struct {
	model    Model[T]
	spec     query.Spec
	settings settings

	records []T
	loaded  bool
	count   *int64
}

// New normalizes raw against model and wraps the result.
func New[T any](model Model[T], raw any, opts ...Option) (*Query[T], error) {
	spec, err := query.New(model, raw)
	if err != nil {
		return nil, err
	}
	s := settings{log: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Query[T]{model: model, spec: spec, settings: s}, nil
}

// FromSpec wraps an existing spec.
func FromSpec[T any](model Model[T], spec query.Spec, opts ...Option) *Query[T] {
	s := settings{log: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Query[T]{model: model, spec: spec, settings: s}
}

func (q *Query[T]) derive(spec query.Spec) *Query[T] {
	return &Query[T]{model: q.model, spec: spec, settings: q.settings}
}

// Model returns the bound model.
func (q *Query[T]) Model() Model[T] { return q.model }

// Spec returns the composed spec.
func (q *Query[T]) Spec() query.Spec { return q.spec }

// Loaded reports whether records have been materialized.
func (q *Query[T]) Loaded() bool { return q.loaded }

// Scoped normalizes raw and composes it on top of the current spec.
func (q *Query[T]) Scoped(raw any) (*Query[T], error) {
	other, err := query.New(q.model, raw)
	if err != nil {
		return nil, err
	}
	return q.derive(q.spec.Compose(other)), nil
}

// All is Scoped, except that an empty request returns q itself.
func (q *Query[T]) All(raw any) (*Query[T], error) {
	if query.IsEmptyRequest(raw) {
		return q, nil
	}
	return q.Scoped(raw)
}

// with composes a criteria-free spec; option-only composition cannot fail.
func (q *Query[T]) with(opts ...query.Option) *Query[T] {
	return q.derive(q.spec.Compose(query.OptionsSpec(opts...)))
}

func (q *Query[T]) Limit(n int) *Query[T]  { return q.with(query.WithLimit(n)) }
func (q *Query[T]) Skip(n int) *Query[T]   { return q.with(query.WithSkip(n)) }
func (q *Query[T]) Offset(n int) *Query[T] { return q.Skip(n) }

// Fields restricts the projection; Select is an alias.
func (q *Query[T]) Fields(fields ...string) *Query[T] { return q.with(query.WithFields(fields...)) }
func (q *Query[T]) Select(fields ...string) *Query[T] { return q.Fields(fields...) }

// Sort puts entries ahead of any existing order.
func (q *Query[T]) Sort(entries ...query.SortEntry) *Query[T] {
	return q.with(query.WithSort(entries...))
}

// Order parses "field dir, ..." and applies it like Sort.
func (q *Query[T]) Order(order string) *Query[T] {
	return q.Sort(query.ParseSort(order)...)
}

// Where composes a filter; it is Scoped under a name that reads well in chains.
func (q *Query[T]) Where(raw any) (*Query[T], error) { return q.Scoped(raw) }

// ScopedBy composes an equality filter on field.
func (q *Query[T]) ScopedBy(field string, value any) (*Query[T], error) {
	return q.Scoped(query.Request{field: value})
}

// Call resolves a dynamic operation: a named scope on the model, or
// scoped_by_<field> with one value. The scope composes with the current chain.
func (q *Query[T]) Call(name string, args ...any) (*Query[T], error) {
	if q.model.HasNamedScope(name) {
		raw, err := q.model.NamedScopeCriteria(name, args...)
		if err != nil {
			return nil, err
		}
		return q.All(raw)
	}
	if field, ok := strings.CutPrefix(name, scopedByPrefix); ok && field != "" {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s takes one value, got %d", ErrScopeArguments, name, len(args))
		}
		return q.ScopedBy(field, args[0])
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrUnknownScope, name, q.model.Name())
}

// Records materializes the query, issuing one FindMany on first use.
func (q *Query[T]) Records(ctx context.Context) ([]T, error) {
	if q.loaded {
		return q.records, nil
	}

	criteria, opts := q.spec.Criteria(), q.spec.Options()
	ctx, span := tracing.StartQuerySpan(ctx, tracing.SpanOperationFind, q.spanOptions(criteria, opts)...)
	start := time.Now()
	records, err := q.model.FindMany(ctx, criteria, opts)
	q.settings.metrics.Observe(q.model.Name(), metrics.OperationFind, time.Since(start), err)
	tracing.EndSpan(span, err)

	log := q.settings.log.WithContext(ctx)
	if err != nil {
		log.Error("query find failed", "model", q.model.Name(), "error", err)
		return nil, fmt.Errorf("find %s: %w", q.model.Name(), err)
	}
	if records == nil {
		records = []T{}
	}
	q.settings.metrics.ObserveRecords(q.model.Name(), len(records))
	log.Debug("query materialized",
		"operation", metrics.OperationFind,
		"model", q.model.Name(),
		"criteria_fields", criteria.Fields(),
		"skip", opts.Skip(),
		"limit", opts.Limit(),
		"records", len(records),
	)

	q.records, q.loaded = records, true
	return records, nil
}

// ToSlice is an alias for Records.
func (q *Query[T]) ToSlice(ctx context.Context) ([]T, error) { return q.Records(ctx) }

// Count returns the number of matching records, ignoring skip and limit.
// When records are already loaded their length is used instead, so the two
// can differ for windowed queries.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	if q.loaded {
		return int64(len(q.records)), nil
	}
	if q.count != nil {
		return *q.count, nil
	}

	criteria := q.spec.Criteria()
	ctx, span := tracing.StartQuerySpan(ctx, tracing.SpanOperationCount, q.spanOptions(criteria, q.spec.Options())...)
	start := time.Now()
	n, err := q.model.Count(ctx, criteria)
	q.settings.metrics.Observe(q.model.Name(), metrics.OperationCount, time.Since(start), err)
	tracing.EndSpan(span, err)

	log := q.settings.log.WithContext(ctx)
	if err != nil {
		log.Error("query count failed", "model", q.model.Name(), "error", err)
		return 0, fmt.Errorf("count %s: %w", q.model.Name(), err)
	}
	log.Debug("query counted",
		"operation", metrics.OperationCount,
		"model", q.model.Name(),
		"criteria_fields", criteria.Fields(),
		"count", n,
	)
	q.count = &n
	return n, nil
}

// Size is an alias for Count.
func (q *Query[T]) Size(ctx context.Context) (int64, error) { return q.Count(ctx) }

// IsEmpty uses loaded records when present, otherwise a count.
func (q *Query[T]) IsEmpty(ctx context.Context) (bool, error) {
	if q.loaded {
		return len(q.records) == 0, nil
	}
	n, err := q.Count(ctx)
	return n == 0, err
}

// First composes raw, limits to one record and returns it. found is false
// when nothing matches.
func (q *Query[T]) First(ctx context.Context, raw any) (record T, found bool, err error) {
	scoped, err := q.All(raw)
	if err != nil {
		return record, false, err
	}
	records, err := scoped.Limit(1).Records(ctx)
	if err != nil || len(records) == 0 {
		return record, false, err
	}
	return records[0], true, nil
}

// Last is First with the effective sort reversed; without a sort the
// identifier descending is used.
func (q *Query[T]) Last(ctx context.Context, raw any) (record T, found bool, err error) {
	scoped, err := q.All(raw)
	if err != nil {
		return record, false, err
	}
	order := scoped.spec.Options().Sort()
	if len(order) == 0 {
		order = query.SortSpec{query.Asc(query.IDField)}
	}
	records, err := scoped.Sort(order.Reverse()...).Limit(1).Records(ctx)
	if err != nil || len(records) == 0 {
		return record, false, err
	}
	return records[0], true, nil
}

// At returns the i-th materialized record.
func (q *Query[T]) At(ctx context.Context, i int) (record T, ok bool, err error) {
	records, err := q.Records(ctx)
	if err != nil || i < 0 || i >= len(records) {
		return record, false, err
	}
	return records[i], true, nil
}

// Each calls fn for every record, stopping at the first error.
func (q *Query[T]) Each(ctx context.Context, fn func(T) error) error {
	records, err := q.Records(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Filter returns the materialized records for which keep is true.
func (q *Query[T]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	records, err := q.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Map materializes q and transforms every record.
func Map[T, U any](ctx context.Context, q *Query[T], fn func(T) U) ([]U, error) {
	records, err := q.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]U, len(records))
	for i, r := range records {
		out[i] = fn(r)
	}
	return out, nil
}

// Equal reports whether both queries target the same model with equal specs.
// It never touches the store.
func (q *Query[T]) Equal(other *Query[T]) bool {
	if other == nil {
		return false
	}
	return sameModel(q.model, other.model) && q.spec.Equal(other.spec)
}

// EqualRecords materializes q and compares its records with records.
func (q *Query[T]) EqualRecords(ctx context.Context, records []T) (bool, error) {
	got, err := q.Records(ctx)
	if err != nil {
		return false, err
	}
	if len(got) == 0 && len(records) == 0 {
		return true, nil
	}
	return reflect.DeepEqual(got, records), nil
}

func (q *Query[T]) String() string {
	return fmt.Sprintf("%s %s", q.model.Name(), q.spec)
}

func (q *Query[T]) spanOptions(criteria query.Criteria, opts query.Options) []tracing.QuerySpanOption {
	out := []tracing.QuerySpanOption{
		tracing.WithCollection(q.model.Name()),
		tracing.WithCriteriaFields(criteria.Fields()),
		tracing.WithWindow(opts.Skip(), opts.Limit()),
	}
	if q.settings.system != "" {
		out = append(out, tracing.WithDBSystem(q.settings.system))
	}
	return out
}

func sameModel(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}
