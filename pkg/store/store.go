// Package store opens the record store a querykit command runs against.
package store

import (
	"context"

	"github.com/nimburion/querykit/pkg/finder"
)

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// Record is the generic document shape shared by every backend.
type Record = map[string]any

// CollectionSchema is the per-collection metadata a backend needs to build a Model.
type CollectionSchema struct {
	IdentifierFields   []string
	DiscriminatorField string
	DiscriminatorValue string
}

// Backend hands out Models over named collections.
type Backend interface {
	Adapter
	Collection(name string, schema CollectionSchema) finder.Model[Record]
	Insert(ctx context.Context, collection string, docs []Record) error
}
