package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
	"github.com/rogerio-castellano/mall-billing/internal/notify"
	"github.com/rogerio-castellano/mall-billing/internal/repo"
	"github.com/rogerio-castellano/mall-billing/internal/sheets"
	"github.com/rogerio-castellano/mall-billing/internal/syncer"
)

var errUnavailable = &sheets.TransportError{Action: sheets.ActionAdjustStock, StatusCode: 503, Err: errors.New("unexpected response \"unavailable\"")}

// fakeRemote is an in-memory remote store. Server truth only changes on successful writes.
type fakeRemote struct {
	mu       sync.Mutex
	products map[string]models.Product
	order    []string
	bills    []models.Bill

	productFetches atomic.Int32
	billFetches    atomic.Int32

	failWrites bool
	failReads  bool
	// adjustGate, when set, blocks AdjustStock until closed; adjustEntered is signalled first.
	adjustGate    chan struct{}
	adjustEntered chan struct{}
	// holdFetch, when set, parks the next Products call after it has read its snapshot;
	// fetchHeld is closed at that point and holdFetch releases it.
	holdFetch chan struct{}
	fetchHeld chan struct{}
}

func newFakeRemote(products ...models.Product) *fakeRemote {
	r := &fakeRemote{products: map[string]models.Product{}}
	for _, p := range products {
		r.products[p.Code] = p
		r.order = append(r.order, p.Code)
	}
	return r
}

func (r *fakeRemote) setFailWrites(v bool) {
	r.mu.Lock()
	r.failWrites = v
	r.mu.Unlock()
}

func (r *fakeRemote) setFailReads(v bool) {
	r.mu.Lock()
	r.failReads = v
	r.mu.Unlock()
}

func (r *fakeRemote) truth(code string) models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[code]
}

func (r *fakeRemote) Products(context.Context) ([]models.Product, error) {
	r.productFetches.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errUnavailable
	}
	out := make([]models.Product, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.products[code])
	}
	hold, held := r.holdFetch, r.fetchHeld
	r.holdFetch = nil
	r.mu.Unlock()
	if hold != nil {
		close(held)
		<-hold
	}
	r.mu.Lock()
	return out, nil
}

func (r *fakeRemote) Bills(context.Context) ([]models.Bill, error) {
	r.billFetches.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errUnavailable
	}
	return append([]models.Bill(nil), r.bills...), nil
}

func (r *fakeRemote) Product(_ context.Context, code string) (models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[code]
	if !ok {
		return models.Product{}, sheets.ErrRemoteNotFound
	}
	return p, nil
}

func (r *fakeRemote) AddProduct(_ context.Context, p models.Product) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return nil, errUnavailable
	}
	r.products[p.Code] = p
	r.order = append(r.order, p.Code)
	return nil, nil
}

func (r *fakeRemote) UpdateProduct(_ context.Context, code string, patch models.ProductPatch) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return nil, &sheets.RemoteApplicationError{Action: sheets.ActionProductUpdate, Message: "sheet locked"}
	}
	p := patch.Apply(r.products[code])
	r.products[code] = p
	return &p, nil
}

func (r *fakeRemote) SetStock(_ context.Context, code string, stock int) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return nil, errUnavailable
	}
	p := r.products[code]
	p.Stock = stock
	r.products[code] = p
	return &p, nil
}

func (r *fakeRemote) AdjustStock(ctx context.Context, code string, change int) (*models.Product, error) {
	if r.adjustEntered != nil {
		r.adjustEntered <- struct{}{}
	}
	if r.adjustGate != nil {
		select {
		case <-r.adjustGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return nil, errUnavailable
	}
	p := r.products[code]
	p.Stock = models.ClampStock(p.Stock, change)
	r.products[code] = p
	return nil, nil
}

func (r *fakeRemote) CreateBill(_ context.Context, b models.Bill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errUnavailable
	}
	for _, item := range b.Items {
		p := r.products[item.Code]
		p.Stock = models.ClampStock(p.Stock, -item.Quantity)
		r.products[item.Code] = p
	}
	r.bills = append([]models.Bill{b}, r.bills...)
	return nil
}

type fixture struct {
	facade *Facade
	remote *fakeRemote
	mirror *mirror.Mirror
	sync   *syncer.Syncer
	feed   *notify.Feed
	moves  *repo.InMemoryMovementRepository
}

func newFixture(t *testing.T, remote *fakeRemote) *fixture {
	t.Helper()
	m := mirror.NewMemory()
	s := syncer.New(m, remote, syncer.Options{Interval: time.Hour})
	t.Cleanup(s.Stop)

	feed := notify.NewFeed(20)
	moves := repo.NewInMemoryMovementRepository()
	f, err := New(Options{
		Mode:      RemoteBacked,
		Mirror:    m,
		Remote:    remote,
		Syncer:    s,
		Movements: moves,
		Feed:      feed,
		Now:       func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{facade: f, remote: remote, mirror: m, sync: s, feed: feed, moves: moves}
}

func p001() models.Product {
	return models.Product{Code: "P001", Name: "Basmati Rice 1kg", Category: "Grocery", Price: decimal.NewFromInt(50), Stock: 10, MinStock: 2}
}

func p002() models.Product {
	return models.Product{Code: "P002", Name: "Sunflower Oil 1L", Category: "Grocery", Price: decimal.RequireFromString("120.50"), Stock: 3, MinStock: 5}
}
