// Package mirror keeps a local, disposable copy of the remote collections.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

const (
	ProductsCollection = "products"
	BillsCollection    = "bills"
)

// ErrNotFound is returned when a record is not present in the mirror.
var ErrNotFound = errors.New("record not found in mirror")

// Order decides where records that are new to a collection are placed by Put.
type Order int

const (
	Append Order = iota
	Prepend
)

// Collection is a keyed, ordered set of records of one type.
//
// ReplaceAll swaps the whole content at once and All reads one consistent snapshot,
// so readers never see a half-replaced collection.
type Collection[T any] interface {
	Name() string
	ReplaceAll(ctx context.Context, records []T) error
	Get(ctx context.Context, key string) (T, bool, error)
	All(ctx context.Context) ([]T, error)
	// Put inserts the record, or replaces the one with the same key in place.
	Put(ctx context.Context, record T) error
	Len(ctx context.Context) (int, error)
	Meta(ctx context.Context) (models.SyncMetadata, bool, error)
	SetMeta(ctx context.Context, meta models.SyncMetadata) error
}

func ProductKey(p models.Product) string { return p.Code }

func BillKey(b models.Bill) string { return b.ID }

// Mirror holds the mirrored products and bills.
type Mirror struct {
	Products Collection[models.Product]
	Bills    Collection[models.Bill]
}

func New(products Collection[models.Product], bills Collection[models.Bill]) *Mirror {
	return &Mirror{Products: products, Bills: bills}
}

// ProductFilter narrows QueryProducts. All set conditions must hold.
type ProductFilter struct {
	Category string
	LowStock bool
	Search   string
	Offset   *int
	Limit    *int
}

func matchesFilter(p models.Product, pf ProductFilter) bool {
	if pf.Category != "" && !strings.EqualFold(p.Category, pf.Category) {
		return false
	}
	if pf.LowStock && !p.LowStock() {
		return false
	}
	if pf.Search != "" {
		term := strings.ToLower(pf.Search)
		if !strings.Contains(strings.ToLower(p.Code), term) &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Category), term) {
			return false
		}
	}
	return true
}

// QueryProducts returns the matching page and the total number of matches.
func (m *Mirror) QueryProducts(ctx context.Context, pf ProductFilter) ([]models.Product, int, error) {
	all, err := m.Products.All(ctx)
	if err != nil {
		return nil, 0, err
	}

	filtered := []models.Product{}
	for _, p := range all {
		if matchesFilter(p, pf) {
			filtered = append(filtered, p)
		}
	}

	if pf.Offset != nil && *pf.Offset > len(filtered) {
		return []models.Product{}, len(filtered), nil
	}

	start := 0
	if pf.Offset != nil {
		start = clamp(*pf.Offset, 0, len(filtered))
	}

	end := len(filtered)
	if pf.Limit != nil && *pf.Limit > 0 {
		end = clamp(start+*pf.Limit, start, len(filtered))
	}

	return filtered[start:end], len(filtered), nil
}

// FindProduct looks a product up by code, then by exact name.
func (m *Mirror) FindProduct(ctx context.Context, codeOrName string) (models.Product, error) {
	p, ok, err := m.Products.Get(ctx, codeOrName)
	if err != nil {
		return models.Product{}, err
	}
	if ok {
		return p, nil
	}
	all, err := m.Products.All(ctx)
	if err != nil {
		return models.Product{}, err
	}
	for _, p := range all {
		if p.Name == codeOrName {
			return p, nil
		}
	}
	return models.Product{}, ErrNotFound
}

// UpsertProduct merges patch into the stored product.
func (m *Mirror) UpsertProduct(ctx context.Context, code string, patch models.ProductPatch) (models.Product, error) {
	p, ok, err := m.Products.Get(ctx, code)
	if err != nil {
		return models.Product{}, err
	}
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", code, ErrNotFound)
	}
	p = patch.Apply(p)
	if err := m.Products.Put(ctx, p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

// AdjustProductStock applies delta to the stored stock, never going below zero.
func (m *Mirror) AdjustProductStock(ctx context.Context, code string, delta int) (models.Product, error) {
	p, ok, err := m.Products.Get(ctx, code)
	if err != nil {
		return models.Product{}, err
	}
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", code, ErrNotFound)
	}
	p.Stock = models.ClampStock(p.Stock, delta)
	if err := m.Products.Put(ctx, p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// dedupe keeps the last record for each key at the position of its first occurrence.
func dedupe[T any](records []T, key func(T) string) ([]string, map[string]T) {
	keys := make([]string, 0, len(records))
	byKey := make(map[string]T, len(records))
	for _, r := range records {
		k := key(r)
		if _, seen := byKey[k]; !seen {
			keys = append(keys, k)
		}
		byKey[k] = r
	}
	return keys, byKey
}
