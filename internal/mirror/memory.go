package mirror

import (
	"context"
	"slices"
	"sync"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

// MemoryCollection is an in-memory implementation of Collection.
type MemoryCollection[T any] struct {
	name  string
	key   func(T) string
	order Order

	mu      sync.RWMutex
	records map[string]T
	keys    []string
	meta    *models.SyncMetadata
}

// NewMemoryCollection creates an empty collection keyed by key.
func NewMemoryCollection[T any](name string, key func(T) string, order Order) *MemoryCollection[T] {
	return &MemoryCollection[T]{
		name:    name,
		key:     key,
		order:   order,
		records: map[string]T{},
		keys:    []string{},
	}
}

// NewMemory creates a mirror kept entirely in process memory.
func NewMemory() *Mirror {
	return New(
		NewMemoryCollection(ProductsCollection, ProductKey, Append),
		NewMemoryCollection(BillsCollection, BillKey, Prepend),
	)
}

func (c *MemoryCollection[T]) Name() string {
	return c.name
}

func (c *MemoryCollection[T]) ReplaceAll(_ context.Context, records []T) error {
	keys, byKey := dedupe(records, c.key)

	c.mu.Lock()
	c.keys = keys
	c.records = byKey
	c.mu.Unlock()
	return nil
}

func (c *MemoryCollection[T]) Get(_ context.Context, key string) (T, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[key]
	return r, ok, nil
}

func (c *MemoryCollection[T]) All(_ context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.records[k])
	}
	return out, nil
}

func (c *MemoryCollection[T]) Put(_ context.Context, record T) error {
	k := c.key(record)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.records[k]; !exists {
		if c.order == Prepend {
			c.keys = slices.Insert(c.keys, 0, k)
		} else {
			c.keys = append(c.keys, k)
		}
	}
	c.records[k] = record
	return nil
}

func (c *MemoryCollection[T]) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys), nil
}

func (c *MemoryCollection[T]) Meta(_ context.Context) (models.SyncMetadata, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.meta == nil {
		return models.SyncMetadata{}, false, nil
	}
	return *c.meta, true, nil
}

func (c *MemoryCollection[T]) SetMeta(_ context.Context, meta models.SyncMetadata) error {
	c.mu.Lock()
	c.meta = &meta
	c.mu.Unlock()
	return nil
}
