package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
)

func writesCoordinator(w *Writes, fetch Fetch[models.Product]) (*Coordinator[models.Product], *mirror.MemoryCollection[models.Product]) {
	dst := mirror.NewMemoryCollection(mirror.ProductsCollection, mirror.ProductKey, mirror.Append)
	c := NewCoordinator[models.Product](dst, fetch, Options{Interval: time.Minute, Writes: w})
	return c, dst
}

func TestRefreshOverlappingWriteFetchesAgain(t *testing.T) {
	ctx := context.Background()
	w := NewWrites()

	var calls atomic.Int32
	fetch := func(context.Context) ([]models.Product, error) {
		n := calls.Add(1)
		if n == 1 {
			// A write lands while the first fetch is on the wire.
			w.Begin()
			w.End()
			return []models.Product{{Code: "P001", Stock: 10}}, nil
		}
		return []models.Product{{Code: "P001", Stock: 7}}, nil
	}
	c, dst := writesCoordinator(w, fetch)

	if _, err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 fetches, got %d", calls.Load())
	}
	p, _, _ := dst.Get(ctx, "P001")
	if p.Stock != 7 {
		t.Errorf("expected the second snapshot to win, got stock %d", p.Stock)
	}
}

func TestRefreshWaitsForWriteInFlight(t *testing.T) {
	ctx := context.Background()
	w := NewWrites()
	c, dst := writesCoordinator(w, func(context.Context) ([]models.Product, error) {
		return []models.Product{{Code: "P001", Stock: 10}}, nil
	})

	w.Begin()
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("refresh applied while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	if n, _ := dst.Len(ctx); n != 0 {
		t.Fatalf("mirror changed during the write")
	}

	w.End()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never finished")
	}
	if n, _ := dst.Len(ctx); n != 1 {
		t.Errorf("expected the refetched snapshot to be applied, got %d records", n)
	}
}

func TestRefreshGivesUpWhenWritesKeepLanding(t *testing.T) {
	ctx := context.Background()
	w := NewWrites()
	var calls atomic.Int32
	c, dst := writesCoordinator(w, func(context.Context) ([]models.Product, error) {
		calls.Add(1)
		w.Begin()
		w.End()
		return []models.Product{{Code: "P001"}}, nil
	})

	if _, err := c.Refresh(ctx); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if calls.Load() != maxAttempts {
		t.Errorf("expected %d fetches, got %d", maxAttempts, calls.Load())
	}
	if _, synced, _ := dst.Meta(ctx); synced {
		t.Errorf("superseded refresh must leave the mirror untouched")
	}
}
