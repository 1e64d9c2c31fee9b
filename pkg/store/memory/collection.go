// Package memory is an in-process record store for querykit models.
//
// Documents are plain maps. Criteria are evaluated with MongoDB semantics for
// the operators querykit produces, which makes the store suitable for tests,
// fixtures and the CLI.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nimburion/querykit/pkg/finder"
	"github.com/nimburion/querykit/pkg/observability/logger"
	"github.com/nimburion/querykit/pkg/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultDiscriminatorField holds the subtype name in shared collections.
const DefaultDiscriminatorField = "_type"

// ErrClosed is returned by any call on a closed collection.
var ErrClosed = errors.New("memory: collection is closed")

// Document is a stored record.
type Document = map[string]any

// IDStrategy decides how Insert fills a missing _id and how identifier
// strings are coerced.
type IDStrategy int

const (
	IDStrategyObjectID IDStrategy = iota
	IDStrategyUUID
)

// Option configures a Collection.
type Option func(*Collection)

// WithIDStrategy selects ObjectID (default) or UUID identifiers.
func WithIDStrategy(s IDStrategy) Option {
	return func(c *Collection) { c.idStrategy = s }
}

// WithIdentifierFields lists extra (dotted) fields holding identifiers, such
// as foreign keys. _id is always included.
func WithIdentifierFields(fields ...string) Option {
	return func(c *Collection) { c.identifierFields = append(c.identifierFields, fields...) }
}

// WithDiscriminatorField overrides DefaultDiscriminatorField.
func WithDiscriminatorField(field string) Option {
	return func(c *Collection) { c.discriminatorField = field }
}

// WithSubtype scopes the collection to one discriminator value.
func WithSubtype(value string) Option {
	return func(c *Collection) { c.discriminatorValue = value }
}

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *Collection) {
		if l != nil {
			c.log = l
		}
	}
}

type dataset struct {
	mu     sync.RWMutex
	docs   []Document
	closed bool
}

// Collection is a named set of documents. It implements finder.Model and
// embeds a scope registry. Subtype views share storage with their parent.
type Collection struct {
	finder.Scopes

	name               string
	data               *dataset
	idStrategy         IDStrategy
	identifierFields   []string
	discriminatorField string
	discriminatorValue string
	log                logger.Logger
}

var _ finder.Model[Document] = (*Collection)(nil)

// Cosa fa: crea una collection in memoria vuota.
// Cosa NON fa: non persiste i documenti oltre la vita del processo.
// Esempio minimo: people := memory.NewCollection("people")
func NewCollection(name string, opts ...Option) *Collection {
	c := &Collection{
		name:               name,
		data:               &dataset{},
		discriminatorField: DefaultDiscriminatorField,
		log:                logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// View returns a collection sharing c's documents with opts applied on top
// of c's settings. Scopes are not shared.
func (c *Collection) View(opts ...Option) *Collection {
	v := &Collection{
		name:               c.name,
		data:               c.data,
		idStrategy:         c.idStrategy,
		identifierFields:   append([]string{}, c.identifierFields...),
		discriminatorField: c.discriminatorField,
		discriminatorValue: c.discriminatorValue,
		log:                c.log,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Subtype returns a view restricted to documents whose discriminator is
// value. Inserts through the view are tagged with value.
func (c *Collection) Subtype(value string) *Collection {
	return c.View(WithSubtype(value))
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) IsSharedCollectionSubtype() bool { return c.discriminatorValue != "" }
func (c *Collection) DiscriminatorField() string      { return c.discriminatorField }
func (c *Collection) DiscriminatorValue() string      { return c.discriminatorValue }

func (c *Collection) PrimaryKeyTypedFields() []string {
	return append([]string{query.IDField}, c.identifierFields...)
}

// CoerceIdentifier parses text as an ObjectID hex string or a UUID,
// depending on the collection's IDStrategy.
func (c *Collection) CoerceIdentifier(text string) (any, error) {
	if c.idStrategy == IDStrategyUUID {
		id, err := uuid.Parse(text)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	}
	return primitive.ObjectIDFromHex(text)
}

func (c *Collection) newID() any {
	if c.idStrategy == IDStrategyUUID {
		return uuid.NewString()
	}
	return primitive.NewObjectID()
}

// Insert stores a copy of doc, assigning _id when missing, and returns the id.
func (c *Collection) Insert(ctx context.Context, doc Document) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := make(Document, len(doc)+2)
	for k, v := range doc {
		stored[k] = v
	}
	if _, ok := stored[query.IDField]; !ok {
		stored[query.IDField] = c.newID()
	}
	if c.IsSharedCollectionSubtype() {
		if _, ok := stored[c.discriminatorField]; !ok {
			stored[c.discriminatorField] = c.discriminatorValue
		}
	}

	c.data.mu.Lock()
	defer c.data.mu.Unlock()
	if c.data.closed {
		return nil, ErrClosed
	}
	for _, existing := range c.data.docs {
		if deepEqual(existing[query.IDField], stored[query.IDField]) {
			return nil, fmt.Errorf("memory: duplicate %s %v in %s", query.IDField, stored[query.IDField], c.name)
		}
	}
	c.data.docs = append(c.data.docs, stored)
	return stored[query.IDField], nil
}

// InsertMany inserts docs in order, stopping at the first failure.
func (c *Collection) InsertMany(ctx context.Context, docs []Document) ([]any, error) {
	ids := make([]any, 0, len(docs))
	for _, doc := range docs {
		id, err := c.Insert(ctx, doc)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FindMany returns the documents matching criteria, ordered, windowed and
// projected per opts. Stored documents are never handed out directly.
func (c *Collection) FindMany(ctx context.Context, criteria query.Criteria, opts query.Options) ([]Document, error) {
	matched, err := c.match(ctx, criteria)
	if err != nil {
		return nil, err
	}

	if order := opts.Sort(); len(order) > 0 {
		sortDocuments(matched, order)
	}
	if skip := opts.Skip(); skip > 0 {
		matched = matched[min(skip, len(matched)):]
	}
	if limit := opts.Limit(); limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]Document, len(matched))
	for i, doc := range matched {
		out[i] = project(doc, opts.Fields())
	}
	c.log.Debug("memory find", "collection", c.name, "matched", len(out))
	return out, nil
}

// Count returns the number of documents matching criteria.
func (c *Collection) Count(ctx context.Context, criteria query.Criteria) (int64, error) {
	matched, err := c.match(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Len returns the number of stored documents, across every subtype.
func (c *Collection) Len() int {
	c.data.mu.RLock()
	defer c.data.mu.RUnlock()
	return len(c.data.docs)
}

func (c *Collection) match(ctx context.Context, criteria query.Criteria) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.data.mu.RLock()
	defer c.data.mu.RUnlock()
	if c.data.closed {
		return nil, ErrClosed
	}
	var out []Document
	for _, doc := range c.data.docs {
		ok, err := Match(doc, criteria)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// HealthCheck fails once the collection is closed.
func (c *Collection) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.data.mu.RLock()
	defer c.data.mu.RUnlock()
	if c.data.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all documents. It is idempotent and affects every subtype view.
func (c *Collection) Close() error {
	c.data.mu.Lock()
	defer c.data.mu.Unlock()
	c.data.closed = true
	c.data.docs = nil
	return nil
}

// sortDocuments orders docs in place. Missing values sort before present
// ones; incomparable values keep their insertion order.
func sortDocuments(docs []Document, order query.SortSpec) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, e := range order {
			a, okA := lookup(docs[i], e.Field)
			b, okB := lookup(docs[j], e.Field)
			var c int
			switch {
			case !okA && !okB:
				continue
			case !okA:
				c = -1
			case !okB:
				c = 1
			default:
				cmp, ok := query.CompareValues(a, b)
				if !ok {
					continue
				}
				c = cmp
			}
			if c == 0 {
				continue
			}
			if e.Direction == query.Descending {
				c = -c
			}
			return c < 0
		}
		return false
	})
}

// project copies doc, keeping _id and the listed (possibly dotted) fields.
// No fields copies everything.
func project(doc Document, fields []string) Document {
	if len(fields) == 0 {
		out := make(Document, len(doc))
		for k, v := range doc {
			out[k] = v
		}
		return out
	}
	out := Document{}
	if id, ok := doc[query.IDField]; ok {
		out[query.IDField] = id
	}
	for _, field := range fields {
		v, ok := lookup(doc, field)
		if !ok {
			continue
		}
		setPath(out, strings.Split(field, "."), v)
	}
	return out
}

func setPath(dst map[string]any, parts []string, v any) {
	if len(parts) == 1 {
		dst[parts[0]] = v
		return
	}
	next, ok := dst[parts[0]].(map[string]any)
	if !ok {
		next = map[string]any{}
		dst[parts[0]] = next
	}
	setPath(next, parts[1:], v)
}
