package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
	"github.com/rogerio-castellano/mall-billing/internal/notify"
	"github.com/rogerio-castellano/mall-billing/internal/sheets"
)

// GetProducts returns the page of products matching filter and the total number of matches.
func (f *Facade) GetProducts(ctx context.Context, filter mirror.ProductFilter, forceRefresh bool) ([]models.Product, int, error) {
	if f.remoteBacked() {
		if err := ensureFresh(ctx, f, f.sync.Products, f.mirror.Products, forceRefresh); err != nil {
			return nil, 0, err
		}
	}
	return f.mirror.QueryProducts(ctx, filter)
}

// GetProductByCode looks in the mirror first and falls back to the remote store on a miss.
// Without a remote store a product may also be found by its exact name.
func (f *Facade) GetProductByCode(ctx context.Context, code string) (models.Product, error) {
	if !f.remoteBacked() {
		p, err := f.mirror.FindProduct(ctx, code)
		if errors.Is(err, mirror.ErrNotFound) {
			return models.Product{}, fmt.Errorf("%s: %w", code, ErrNotFound)
		}
		return p, err
	}

	p, ok, err := f.mirror.Products.Get(ctx, code)
	if err != nil {
		return models.Product{}, err
	}
	if ok {
		return p, nil
	}

	p, err = f.remote.Product(ctx, code)
	if errors.Is(err, sheets.ErrRemoteNotFound) {
		return models.Product{}, fmt.Errorf("%s: %w", code, ErrNotFound)
	}
	if err != nil {
		return models.Product{}, err
	}
	if err := f.mirror.Products.Put(ctx, p); err != nil {
		f.log.Warn("failed to cache fetched product", zap.String("code", code), zap.Error(err))
	}
	return p, nil
}

func validateProduct(p models.Product) error {
	var problems []string
	if strings.TrimSpace(p.Code) == "" {
		problems = append(problems, "code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.Price.IsNegative() {
		problems = append(problems, "price must be non-negative")
	}
	if p.Stock < 0 {
		problems = append(problems, "stock must be non-negative")
	}
	if p.MinStock < 0 {
		problems = append(problems, "minStock must be non-negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, "; "))
	}
	return nil
}

// AddProduct writes a new product to the remote store and then to the mirror. Nothing is
// added locally if the remote write fails.
func (f *Facade) AddProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := f.loadProducts(ctx); err != nil {
		return models.Product{}, err
	}
	_, exists, err := f.mirror.Products.Get(ctx, p.Code)
	if err != nil {
		return models.Product{}, err
	}
	if exists {
		return models.Product{}, fmt.Errorf("%s: %w", p.Code, ErrDuplicateCode)
	}

	end := f.beginWrite()
	defer end()

	stored := p
	if f.remoteBacked() {
		echo, err := f.remote.AddProduct(ctx, p)
		if err != nil {
			f.reportRemoteFailure("could not add "+p.Name, err)
			return models.Product{}, err
		}
		if echo != nil {
			stored = *echo
		}
	}

	if err := f.mirror.Products.Put(ctx, stored); err != nil {
		return models.Product{}, err
	}
	f.journal(ctx, stored.Code, stored.Stock, models.MovementIn, "initial stock")
	f.log.Info("product added", zap.String("code", stored.Code))
	f.feed.Publish(notify.Success, stored.Name+" added")
	f.alertStock(stored)
	return stored, nil
}

// UpdateProduct merges patch into the product, locally first, then remotely.
func (f *Facade) UpdateProduct(ctx context.Context, code string, patch models.ProductPatch) (models.Product, error) {
	if patch.Stock != nil && *patch.Stock < 0 {
		return models.Product{}, fmt.Errorf("stock %d: %w", *patch.Stock, ErrInvalidQuantity)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	before, err := f.lookup(ctx, code)
	if err != nil {
		return models.Product{}, err
	}
	if err := validateProduct(patch.Apply(before)); err != nil {
		return models.Product{}, err
	}

	end := f.beginWrite()
	defer end()

	updated, err := f.mirror.UpsertProduct(ctx, code, patch)
	if err != nil {
		return models.Product{}, err
	}

	if f.remoteBacked() {
		echo, err := f.remote.UpdateProduct(ctx, code, patch)
		if err != nil {
			f.compensate(ctx, end, []models.Product{before}, err)
			f.reportRemoteFailure("could not update "+before.Name, err)
			return models.Product{}, err
		}
		updated = f.reconcile(ctx, updated, echo)
	}

	f.journal(ctx, code, updated.Stock-before.Stock, models.MovementAdjust, "product update")
	f.feed.Publish(notify.Success, updated.Name+" updated")
	f.alertStock(updated)
	return updated, nil
}

// SetStock overwrites the stock count of a product.
func (f *Facade) SetStock(ctx context.Context, code string, stock int, reason string) (models.Product, error) {
	if stock < 0 {
		return models.Product{}, fmt.Errorf("stock %d: %w", stock, ErrInvalidQuantity)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	before, err := f.lookup(ctx, code)
	if err != nil {
		return models.Product{}, err
	}
	end := f.beginWrite()
	defer end()

	updated := before
	updated.Stock = stock
	if err := f.mirror.Products.Put(ctx, updated); err != nil {
		return models.Product{}, err
	}

	if f.remoteBacked() {
		echo, err := f.remote.SetStock(ctx, code, stock)
		if err != nil {
			f.compensate(ctx, end, []models.Product{before}, err)
			f.reportRemoteFailure("could not set stock of "+before.Name, err)
			return models.Product{}, err
		}
		updated = f.reconcile(ctx, updated, echo)
	}

	f.journal(ctx, code, updated.Stock-before.Stock, models.MovementAdjust, reason)
	f.feed.Publish(notify.Success, fmt.Sprintf("%s stock set to %d", updated.Name, updated.Stock))
	f.alertStock(updated)
	return updated, nil
}

// AdjustStock moves the stock of a product by delta, never below zero.
func (f *Facade) AdjustStock(ctx context.Context, code string, delta int, reason string) (models.Product, error) {
	return f.adjust(ctx, code, delta, models.MovementAdjust, reason)
}

// StockIn receives quantity units of a product.
func (f *Facade) StockIn(ctx context.Context, code string, quantity int, reason string) (models.Product, error) {
	if quantity <= 0 {
		return models.Product{}, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}
	return f.adjust(ctx, code, quantity, models.MovementIn, reason)
}

// StockOut removes quantity units of a product.
func (f *Facade) StockOut(ctx context.Context, code string, quantity int, reason string) (models.Product, error) {
	if quantity <= 0 {
		return models.Product{}, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}
	return f.adjust(ctx, code, -quantity, models.MovementOut, reason)
}

func (f *Facade) adjust(ctx context.Context, code string, delta int, kind models.MovementKind, reason string) (models.Product, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	before, err := f.lookup(ctx, code)
	if err != nil {
		return models.Product{}, err
	}

	end := f.beginWrite()
	defer end()

	updated, err := f.mirror.AdjustProductStock(ctx, code, delta)
	if err != nil {
		return models.Product{}, err
	}

	if f.remoteBacked() {
		echo, err := f.remote.AdjustStock(ctx, code, delta)
		if err != nil {
			f.compensate(ctx, end, []models.Product{before}, err)
			f.reportRemoteFailure("could not update stock of "+before.Name, err)
			return models.Product{}, err
		}
		updated = f.reconcile(ctx, updated, echo)
	}

	f.journal(ctx, code, updated.Stock-before.Stock, kind, reason)
	f.log.Info("stock adjusted", zap.String("code", code), zap.Int("delta", delta), zap.Int("stock", updated.Stock))
	f.feed.Publish(notify.Success, fmt.Sprintf("%s stock is now %d", updated.Name, updated.Stock))
	f.alertStock(updated)
	return updated, nil
}

// reconcile stores the product the remote store answered with, if it answered with one.
func (f *Facade) reconcile(ctx context.Context, local models.Product, echo *models.Product) models.Product {
	if echo == nil || echo.Code != local.Code {
		return local
	}
	if err := f.mirror.Products.Put(ctx, *echo); err != nil {
		f.log.Warn("failed to reconcile product", zap.String("code", echo.Code), zap.Error(err))
		return local
	}
	return *echo
}
