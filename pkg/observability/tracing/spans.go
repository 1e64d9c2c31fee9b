package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nimburion/querykit"

// SpanOperation names a traced store call.
type SpanOperation string

const (
	SpanOperationFind  SpanOperation = "db.find"
	SpanOperationCount SpanOperation = "db.count"
)

// QuerySpanOption configures a query span.
type QuerySpanOption func(*querySpanOptions)

type querySpanOptions struct {
	collection string
	attributes []attribute.KeyValue
}

// WithCollection sets the collection (or model) name.
func WithCollection(name string) QuerySpanOption {
	return func(o *querySpanOptions) {
		o.collection = name
		o.attributes = append(o.attributes, attribute.String("db.collection", name))
	}
}

// WithDBSystem sets the store kind, e.g. "mongodb" or "memory".
func WithDBSystem(system string) QuerySpanOption {
	return func(o *querySpanOptions) {
		o.attributes = append(o.attributes, attribute.String("db.system", system))
	}
}

// WithCriteriaFields records the filtered top-level fields, never their values.
func WithCriteriaFields(fields []string) QuerySpanOption {
	return func(o *querySpanOptions) {
		o.attributes = append(o.attributes, attribute.String("db.criteria.fields", strings.Join(fields, ",")))
	}
}

// WithWindow records skip and limit.
func WithWindow(skip, limit int) QuerySpanOption {
	return func(o *querySpanOptions) {
		o.attributes = append(o.attributes, attribute.Int("db.skip", skip), attribute.Int("db.limit", limit))
	}
}

// StartQuerySpan starts a client span for a store call using the global provider.
func StartQuerySpan(ctx context.Context, op SpanOperation, opts ...QuerySpanOption) (context.Context, trace.Span) {
	o := &querySpanOptions{attributes: []attribute.KeyValue{attribute.String("db.operation", string(op))}}
	for _, opt := range opts {
		opt(o)
	}
	name := fmt.Sprintf("DB %s", op)
	if o.collection != "" {
		name = fmt.Sprintf("DB %s %s", op, o.collection)
	}
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(o.attributes...)
	return ctx, span
}

// EndSpan records err, if any, and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
