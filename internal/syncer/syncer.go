package syncer

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
)

// Remote is the read side of the remote store.
type Remote interface {
	Products(ctx context.Context) ([]models.Product, error)
	Bills(ctx context.Context) ([]models.Bill, error)
}

// Syncer owns the coordinators of every mirrored collection.
type Syncer struct {
	Products *Coordinator[models.Product]
	Bills    *Coordinator[models.Bill]
	// Writes is shared by both coordinators; mirror writers bracket their changes with it.
	Writes *Writes
}

func New(m *mirror.Mirror, remote Remote, opts Options) *Syncer {
	if opts.Writes == nil {
		opts.Writes = NewWrites()
	}
	fetchBills := func(ctx context.Context) ([]models.Bill, error) {
		bills, err := remote.Bills(ctx)
		if err != nil {
			return nil, err
		}
		SortNewestFirst(bills)
		return bills, nil
	}
	return &Syncer{
		Products: NewCoordinator(m.Products, remote.Products, opts),
		Bills:    NewCoordinator(m.Bills, fetchBills, opts),
		Writes:   opts.Writes,
	}
}

// SortNewestFirst orders bills by date, newest first, keeping the remote order for ties.
func SortNewestFirst(bills []models.Bill) {
	slices.SortStableFunc(bills, func(a, b models.Bill) int {
		return b.Date.Time.Compare(a.Date.Time)
	})
}

// RefreshAll refreshes every collection concurrently.
func (s *Syncer) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.Products.Refresh(ctx)
		return err
	})
	g.Go(func() error {
		_, err := s.Bills.Refresh(ctx)
		return err
	})
	return g.Wait()
}

func (s *Syncer) Start(ctx context.Context) {
	s.Products.Start(ctx)
	s.Bills.Start(ctx)
}

func (s *Syncer) Stop() {
	s.Products.Stop()
	s.Bills.Stop()
}
