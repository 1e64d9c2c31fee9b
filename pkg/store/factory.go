package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nimburion/querykit/pkg/config"
	"github.com/nimburion/querykit/pkg/finder"
	"github.com/nimburion/querykit/pkg/observability/logger"
	"github.com/nimburion/querykit/pkg/store/memory"
	"github.com/nimburion/querykit/pkg/store/mongodb"
)

// Cosa fa: seleziona e inizializza il backend in base alla config.
// Cosa NON fa: non gestisce fallback tra backend diversi.
// Esempio minimo: b, err := store.Open(ctx, cfg, log)
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Type)) {
	case config.StoreTypeMemory:
		return NewMemoryBackend(log), nil
	case config.StoreTypeMongoDB:
		adapter, err := mongodb.NewAdapter(ctx, mongodb.Config{
			URL:              cfg.MongoDB.URL,
			Database:         cfg.MongoDB.Database,
			ConnectTimeout:   cfg.MongoDB.ConnectTimeout,
			OperationTimeout: cfg.MongoDB.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return &mongoBackend{adapter: adapter}, nil
	default:
		return nil, fmt.Errorf("unsupported store.type %q (supported: %s, %s)",
			cfg.Store.Type, config.StoreTypeMemory, config.StoreTypeMongoDB)
	}
}

// MemoryBackend keeps one in-memory collection per name.
type MemoryBackend struct {
	mu          sync.Mutex
	log         logger.Logger
	collections map[string]*memory.Collection
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend(log logger.Logger) *MemoryBackend {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryBackend{log: log, collections: map[string]*memory.Collection{}}
}

func (b *MemoryBackend) base(name string) *memory.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = memory.NewCollection(name, memory.WithLogger(b.log))
		b.collections[name] = c
	}
	return c
}

func (b *MemoryBackend) Collection(name string, schema CollectionSchema) finder.Model[Record] {
	opts := []memory.Option{memory.WithIdentifierFields(schema.IdentifierFields...)}
	if schema.DiscriminatorField != "" {
		opts = append(opts, memory.WithDiscriminatorField(schema.DiscriminatorField))
	}
	if schema.DiscriminatorValue != "" {
		opts = append(opts, memory.WithSubtype(schema.DiscriminatorValue))
	}
	return b.base(name).View(opts...)
}

func (b *MemoryBackend) Insert(ctx context.Context, collection string, docs []Record) error {
	_, err := b.base(collection).InsertMany(ctx, docs)
	return err
}

func (b *MemoryBackend) HealthCheck(context.Context) error { return nil }

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.collections {
		_ = c.Close()
	}
	b.collections = map[string]*memory.Collection{}
	return nil
}

type mongoBackend struct {
	adapter *mongodb.Adapter
}

func (b *mongoBackend) Collection(name string, schema CollectionSchema) finder.Model[Record] {
	opts := []mongodb.CollectionOption{mongodb.WithIdentifierFields(schema.IdentifierFields...)}
	if schema.DiscriminatorValue != "" {
		opts = append(opts, mongodb.WithSubtype(schema.DiscriminatorField, schema.DiscriminatorValue))
	}
	return mongodb.NewCollection[Record](b.adapter, name, opts...)
}

func (b *mongoBackend) Insert(ctx context.Context, collection string, docs []Record) error {
	return mongodb.NewCollection[Record](b.adapter, collection).InsertMany(ctx, docs)
}

func (b *mongoBackend) HealthCheck(ctx context.Context) error { return b.adapter.HealthCheck(ctx) }
func (b *mongoBackend) Close() error                          { return b.adapter.Close() }
