package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rogerio-castellano/mall-billing/internal/billing"
	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
	"github.com/rogerio-castellano/mall-billing/internal/notify"
	"github.com/rogerio-castellano/mall-billing/internal/syncer"
)

// GetBills returns every bill, newest first.
func (f *Facade) GetBills(ctx context.Context, forceRefresh bool) ([]models.Bill, error) {
	if f.remoteBacked() {
		if err := ensureFresh(ctx, f, f.sync.Bills, f.mirror.Bills, forceRefresh); err != nil {
			return nil, err
		}
	}
	return f.mirror.Bills.All(ctx)
}

// CreateBill decrements the stock of every line in the mirror, then records the bill
// remotely. An id, date and total are filled in when missing.
func (f *Facade) CreateBill(ctx context.Context, bill models.Bill) (models.Bill, error) {
	if len(bill.Items) == 0 {
		return models.Bill{}, fmt.Errorf("bill has no items: %w", ErrInvalidQuantity)
	}
	for _, item := range bill.Items {
		if item.Quantity < 1 {
			return models.Bill{}, fmt.Errorf("%s quantity %d: %w", item.Code, item.Quantity, ErrInvalidQuantity)
		}
	}

	now := f.now()
	if bill.ID == "" {
		bill.ID = billing.NewBillID(now)
	}
	if bill.Date.IsZero() {
		bill.Date = models.NewTimestamp(now)
	}
	bill.Total = models.LinesTotal(bill.Items)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := f.loadProducts(ctx); err != nil {
		return models.Bill{}, err
	}

	end := f.beginWrite()
	defer end()

	// before holds each billed product once, as it was ahead of its first decrement.
	var before []models.Product
	after := make(map[string]models.Product)
	for _, item := range bill.Items {
		p, ok, err := f.mirror.Products.Get(ctx, item.Code)
		if err != nil {
			f.restore(ctx, before)
			return models.Bill{}, err
		}
		if !ok {
			f.log.Warn("billed product is not in the mirror", zap.String("code", item.Code))
			continue
		}
		if _, seen := after[item.Code]; !seen {
			before = append(before, p)
		}
		updated, err := f.mirror.AdjustProductStock(ctx, item.Code, -item.Quantity)
		if err != nil {
			f.restore(ctx, before)
			return models.Bill{}, err
		}
		after[item.Code] = updated
	}

	if f.remoteBacked() {
		if err := f.remote.CreateBill(ctx, bill); err != nil {
			f.compensate(ctx, end, before, err)
			f.reportRemoteFailure("could not record bill "+bill.ID, err)
			return models.Bill{}, err
		}
	}

	if err := f.mirror.Bills.Put(ctx, bill); err != nil {
		f.log.Warn("failed to cache bill", zap.String("bill", bill.ID), zap.Error(err))
	}
	for _, p := range before {
		updated := after[p.Code]
		f.journal(ctx, p.Code, updated.Stock-p.Stock, models.MovementSale, bill.ID)
		f.alertStock(updated)
	}
	end()
	if f.remoteBacked() {
		f.sync.Bills.Trigger()
	}

	f.log.Info("bill created", zap.String("bill", bill.ID), zap.String("total", bill.Total.StringFixed(2)))
	f.feed.Publish(notify.Success, fmt.Sprintf("Bill %s created", bill.ID))
	return bill, nil
}

func (f *Facade) restore(ctx context.Context, products []models.Product) {
	for _, p := range products {
		if err := f.mirror.Products.Put(ctx, p); err != nil {
			f.log.Error("failed to restore product", zap.String("code", p.Code), zap.Error(err))
		}
	}
}

type Dashboard struct {
	TotalProducts  int              `json:"totalProducts"`
	TotalStock     int              `json:"totalStock"`
	InventoryValue decimal.Decimal  `json:"inventoryValue"`
	TodaySales     decimal.Decimal  `json:"todaySales"`
	TodayBills     int              `json:"todayBills"`
	OutOfStock     int              `json:"outOfStock"`
	LowStock       []models.Product `json:"lowStock"`
}

// Dashboard summarizes the catalog and the sales of the calendar day of now.
func (f *Facade) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	products, _, err := f.GetProducts(ctx, mirror.ProductFilter{}, false)
	if err != nil {
		return Dashboard{}, err
	}
	bills, err := f.GetBills(ctx, false)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		TotalProducts:  len(products),
		InventoryValue: decimal.Zero,
		TodaySales:     decimal.Zero,
		LowStock:       []models.Product{},
	}
	for _, p := range products {
		d.TotalStock += p.Stock
		d.InventoryValue = d.InventoryValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
		switch {
		case p.Stock == 0:
			d.OutOfStock++
		case p.LowStock():
			d.LowStock = append(d.LowStock, p)
		}
	}

	y, m, day := now.Date()
	for _, b := range bills {
		by, bm, bd := b.Date.In(now.Location()).Date()
		if by == y && bm == m && bd == day {
			d.TodayBills++
			d.TodaySales = d.TodaySales.Add(b.Total)
		}
	}
	return d, nil
}

type CollectionStatus struct {
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Records     int        `json:"records"`
	LastSync    *time.Time `json:"lastSync,omitempty"`
	RecordCount int        `json:"recordCount"`
	LastError   string     `json:"lastError,omitempty"`
}

type Status struct {
	Mode        string             `json:"mode"`
	Configured  bool               `json:"configured"`
	Collections []CollectionStatus `json:"collections"`
}

func (f *Facade) Status(ctx context.Context) (Status, error) {
	s := Status{Mode: f.mode.String(), Configured: f.remoteBacked()}

	products, err := collectionStatus(ctx, f.mirror.Products)
	if err != nil {
		return Status{}, err
	}
	bills, err := collectionStatus(ctx, f.mirror.Bills)
	if err != nil {
		return Status{}, err
	}
	if f.remoteBacked() {
		withCoordinator(&products, f.sync.Products)
		withCoordinator(&bills, f.sync.Bills)
	}
	s.Collections = []CollectionStatus{products, bills}
	return s, nil
}

func collectionStatus[T any](ctx context.Context, c mirror.Collection[T]) (CollectionStatus, error) {
	cs := CollectionStatus{Name: c.Name(), State: "local"}
	n, err := c.Len(ctx)
	if err != nil {
		return cs, err
	}
	cs.Records = n
	meta, ok, err := c.Meta(ctx)
	if err != nil {
		return cs, err
	}
	if ok {
		cs.LastSync = &meta.LastSync
		cs.RecordCount = meta.RecordCount
	}
	return cs, nil
}

func withCoordinator[T any](cs *CollectionStatus, c *syncer.Coordinator[T]) {
	cs.State = c.State().String()
	if err := c.LastError(); err != nil {
		cs.LastError = err.Error()
	}
}
