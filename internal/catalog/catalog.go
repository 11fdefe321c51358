// Package catalog is the single entry point for reading and changing products and bills.
//
// Reads are served from the local mirror. Writes are applied to the mirror first and then
// sent to the remote store; when the remote write fails the mirror is resynced from the
// remote store so it converges on server truth again. Writes are serialized; reads are not
// blocked by them and observe optimistic values immediately.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
	"github.com/rogerio-castellano/mall-billing/internal/notify"
	"github.com/rogerio-castellano/mall-billing/internal/repo"
	"github.com/rogerio-castellano/mall-billing/internal/sheets"
	"github.com/rogerio-castellano/mall-billing/internal/syncer"
)

var (
	ErrDuplicateCode   = errors.New("product code already exists")
	ErrNotFound        = errors.New("product not found")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrNotConfigured   = sheets.ErrNotConfigured
)

// Mode is decided once at startup from whether a remote endpoint is configured.
type Mode int

const (
	RemoteBacked Mode = iota
	Unconfigured
)

func ModeFor(configured bool) Mode {
	if configured {
		return RemoteBacked
	}
	return Unconfigured
}

func (m Mode) String() string {
	if m == Unconfigured {
		return "unconfigured"
	}
	return "remote"
}

// Remote is the remote store as the catalog uses it. *sheets.Client implements it.
type Remote interface {
	syncer.Remote
	Product(ctx context.Context, code string) (models.Product, error)
	AddProduct(ctx context.Context, p models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, code string, patch models.ProductPatch) (*models.Product, error)
	SetStock(ctx context.Context, code string, stock int) (*models.Product, error)
	AdjustStock(ctx context.Context, code string, change int) (*models.Product, error)
	CreateBill(ctx context.Context, b models.Bill) error
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

type Options struct {
	Mode   Mode
	Mirror *mirror.Mirror
	// Remote and Syncer are required when Mode is RemoteBacked.
	Remote    Remote
	Syncer    *syncer.Syncer
	Movements repo.MovementRepository
	Feed      *notify.Feed
	Log       Log
	Now       func() time.Time
}

type Facade struct {
	mode      Mode
	mirror    *mirror.Mirror
	remote    Remote
	sync      *syncer.Syncer
	movements repo.MovementRepository
	feed      *notify.Feed
	log       Log
	now       func() time.Time

	writeMu sync.Mutex
}

func New(opts Options) (*Facade, error) {
	if opts.Mirror == nil {
		return nil, errors.New("catalog: mirror is required")
	}
	if opts.Mode == RemoteBacked && (opts.Remote == nil || opts.Syncer == nil) {
		return nil, errors.New("catalog: remote-backed mode needs a remote and a syncer")
	}
	if opts.Movements == nil {
		opts.Movements = repo.NewInMemoryMovementRepository()
	}
	if opts.Feed == nil {
		opts.Feed = notify.NewFeed(notify.DefaultCapacity)
	}
	if opts.Log == nil {
		opts.Log = nopLog{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Facade{
		mode:      opts.Mode,
		mirror:    opts.Mirror,
		remote:    opts.Remote,
		sync:      opts.Syncer,
		movements: opts.Movements,
		feed:      opts.Feed,
		log:       opts.Log,
		now:       opts.Now,
	}, nil
}

func (f *Facade) Mode() Mode {
	return f.mode
}

func (f *Facade) Feed() *notify.Feed {
	return f.feed
}

func (f *Facade) remoteBacked() bool {
	return f.mode == RemoteBacked
}

// Refresh forces a fetch of every collection.
func (f *Facade) Refresh(ctx context.Context) error {
	if !f.remoteBacked() {
		return ErrNotConfigured
	}
	if err := f.sync.RefreshAll(ctx); err != nil {
		f.reportRemoteFailure("sync failed", err)
		return err
	}
	return nil
}

// ensureFresh loads a collection from the remote store when forced or when it was never
// synced, and otherwise schedules a background refresh if it is stale. Only called in
// remote-backed mode.
func ensureFresh[T any](ctx context.Context, f *Facade, c *syncer.Coordinator[T], local mirror.Collection[T], force bool) error {
	n, err := local.Len(ctx)
	if err != nil {
		return err
	}
	_, synced, err := local.Meta(ctx)
	if err != nil {
		return err
	}
	if force || n == 0 || !synced {
		if _, err := c.Refresh(ctx); err != nil {
			f.reportRemoteFailure("could not load "+c.Name(), err)
			return err
		}
		return nil
	}
	c.TriggerIfStale(ctx)
	return nil
}

func (f *Facade) reportRemoteFailure(msg string, err error) {
	f.log.Error(msg, zap.Error(err))
	if sheets.IsRemoteFailure(err) {
		f.feed.PublishRetryable(fmt.Sprintf("%s: %v", msg, err))
		return
	}
	f.feed.Publish(notify.Error, fmt.Sprintf("%s: %v", msg, err))
}

// beginWrite marks a mirror write in flight so a refresh fetched before it completes cannot
// overwrite it. The returned func ends the write and may be called more than once.
func (f *Facade) beginWrite() func() {
	if f.sync == nil {
		return func() {}
	}
	f.sync.Writes.Begin()
	return sync.OnceFunc(f.sync.Writes.End)
}

// compensate reconverges the mirror on server truth after a failed remote write. If the
// resync fails too, the records touched by the write are put back as they were.
// end is the failed write's end func; the resync must not wait on that write.
func (f *Facade) compensate(ctx context.Context, end func(), before []models.Product, cause error) {
	ctx = context.WithoutCancel(ctx)
	f.log.Warn("remote write failed, resyncing products", zap.Error(cause))
	end()

	_, err := f.sync.Products.Refresh(ctx)
	if err == nil {
		return
	}
	f.log.Warn("compensating resync failed, restoring local snapshot", zap.Error(err))
	f.restore(ctx, before)
}

func (f *Facade) journal(ctx context.Context, code string, delta int, kind models.MovementKind, reason string) {
	if delta == 0 {
		return
	}
	m := models.Movement{Code: code, Delta: delta, Kind: kind, Reason: reason, CreatedAt: f.now().UTC()}
	if _, err := f.movements.Log(ctx, m); err != nil {
		f.log.Error("failed to journal movement", zap.String("code", code), zap.Error(err))
	}
}

// alertStock warns about products that are running low but not yet sold out.
func (f *Facade) alertStock(p models.Product) {
	if p.Stock > 0 && p.LowStock() {
		f.log.Warn("low stock", zap.String("code", p.Code), zap.Int("stock", p.Stock), zap.Int("min_stock", p.MinStock))
		f.feed.Publish(notify.Warning, fmt.Sprintf("%s is low on stock (%d left)", p.Name, p.Stock))
	}
}

// loadProducts makes sure the product mirror has been populated before it is relied on.
func (f *Facade) loadProducts(ctx context.Context) error {
	if !f.remoteBacked() {
		return nil
	}
	return ensureFresh(ctx, f, f.sync.Products, f.mirror.Products, false)
}

func (f *Facade) lookup(ctx context.Context, code string) (models.Product, error) {
	if err := f.loadProducts(ctx); err != nil {
		return models.Product{}, err
	}
	p, ok, err := f.mirror.Products.Get(ctx, code)
	if err != nil {
		return models.Product{}, err
	}
	if !ok {
		return models.Product{}, fmt.Errorf("%s: %w", code, ErrNotFound)
	}
	return p, nil
}

type nopLog struct{}

func (nopLog) Info(string, ...zap.Field)  {}
func (nopLog) Warn(string, ...zap.Field)  {}
func (nopLog) Error(string, ...zap.Field) {}
