package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/querykit/pkg/finder"
	"github.com/nimburion/querykit/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultDiscriminatorField holds the subtype name in shared collections.
const DefaultDiscriminatorField = "_type"

// ErrClosed is returned once the adapter has been closed.
var ErrClosed = errors.New("mongodb: adapter is closed")

// CollectionOption configures a Collection.
type CollectionOption func(*collectionSettings)

type collectionSettings struct {
	identifierFields   []string
	discriminatorField string
	discriminatorValue string
}

// WithIdentifierFields lists extra fields holding ObjectIDs. _id is always included.
func WithIdentifierFields(fields ...string) CollectionOption {
	return func(s *collectionSettings) { s.identifierFields = append(s.identifierFields, fields...) }
}

// WithSubtype restricts the collection to documents whose discriminator
// field equals value.
func WithSubtype(field, value string) CollectionOption {
	return func(s *collectionSettings) {
		if field != "" {
			s.discriminatorField = field
		}
		s.discriminatorValue = value
	}
}

var _ finder.Model[bson.M] = (*Collection[bson.M])(nil)

// Collection is a finder.Model decoding documents into T.
type Collection[T any] struct {
	finder.Scopes

	adapter  *Adapter
	name     string
	settings collectionSettings
}

// NewCollection binds the named collection of a's database.
func NewCollection[T any](a *Adapter, name string, opts ...CollectionOption) *Collection[T] {
	s := collectionSettings{discriminatorField: DefaultDiscriminatorField}
	for _, opt := range opts {
		opt(&s)
	}
	return &Collection[T]{adapter: a, name: name, settings: s}
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) IsSharedCollectionSubtype() bool { return c.settings.discriminatorValue != "" }
func (c *Collection[T]) DiscriminatorField() string      { return c.settings.discriminatorField }
func (c *Collection[T]) DiscriminatorValue() string      { return c.settings.discriminatorValue }

func (c *Collection[T]) PrimaryKeyTypedFields() []string {
	return append([]string{query.IDField}, c.settings.identifierFields...)
}

func (c *Collection[T]) CoerceIdentifier(text string) (any, error) {
	return primitive.ObjectIDFromHex(text)
}

// FindMany runs a find and decodes every document.
func (c *Collection[T]) FindMany(ctx context.Context, criteria query.Criteria, opts query.Options) ([]T, error) {
	coll, err := c.adapter.collection(c.name)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()

	cursor, err := coll.Find(opCtx, Filter(criteria), FindOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("mongodb find %s: %w", c.name, err)
	}
	var out []T
	if err := cursor.All(opCtx, &out); err != nil {
		return nil, fmt.Errorf("mongodb decode %s: %w", c.name, err)
	}
	return out, nil
}

// Count counts matching documents.
func (c *Collection[T]) Count(ctx context.Context, criteria query.Criteria) (int64, error) {
	coll, err := c.adapter.collection(c.name)
	if err != nil {
		return 0, err
	}
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()

	n, err := coll.CountDocuments(opCtx, Filter(criteria))
	if err != nil {
		return 0, fmt.Errorf("mongodb count %s: %w", c.name, err)
	}
	return n, nil
}

// InsertMany stores docs, tagging subtypes with their discriminator.
func (c *Collection[T]) InsertMany(ctx context.Context, docs []map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	coll, err := c.adapter.collection(c.name)
	if err != nil {
		return err
	}
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()

	batch := make([]any, len(docs))
	for i, doc := range docs {
		if c.IsSharedCollectionSubtype() {
			if _, ok := doc[c.settings.discriminatorField]; !ok {
				tagged := make(map[string]any, len(doc)+1)
				for k, v := range doc {
					tagged[k] = v
				}
				tagged[c.settings.discriminatorField] = c.settings.discriminatorValue
				doc = tagged
			}
		}
		batch[i] = doc
	}
	if _, err := coll.InsertMany(opCtx, batch); err != nil {
		return fmt.Errorf("mongodb insert %s: %w", c.name, err)
	}
	return nil
}
