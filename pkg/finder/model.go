// Package finder provides a lazy, chainable query handle over a Model.
//
// A Query accumulates composed query.Specs without touching the store. The
// first call that needs records issues exactly one FindMany and memoizes the
// result; Count issues a separate count request unless records are already
// loaded. Queries are single-owner values: chain methods return new Queries
// and never mutate or share memoized state.
package finder

import (
	"context"

	"github.com/nimburion/querykit/pkg/query"
)

// Model is the persistence collaborator a Query runs against.
type Model[T any] interface {
	query.Schema

	// Name identifies the model in logs, metrics and spans.
	Name() string
	FindMany(ctx context.Context, criteria query.Criteria, opts query.Options) ([]T, error)
	Count(ctx context.Context, criteria query.Criteria) (int64, error)

	HasNamedScope(name string) bool
	// NamedScopeCriteria returns the raw request a scope stands for.
	NamedScopeCriteria(name string, args ...any) (any, error)
}
