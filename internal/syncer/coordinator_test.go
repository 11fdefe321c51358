package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeFetch returns the configured products and counts calls. If gate is set, each call
// blocks until the gate is closed.
type fakeFetch struct {
	calls    atomic.Int32
	products []models.Product
	err      error
	gate     chan struct{}
	entered  chan struct{}
}

func (f *fakeFetch) Fetch(ctx context.Context) ([]models.Product, error) {
	f.calls.Add(1)
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func newCoordinator(f *fakeFetch, clock *fakeClock) (*Coordinator[models.Product], *mirror.MemoryCollection[models.Product]) {
	dst := mirror.NewMemoryCollection(mirror.ProductsCollection, mirror.ProductKey, mirror.Append)
	c := NewCoordinator[models.Product](dst, f.Fetch, Options{Interval: time.Minute, Now: clock.Now})
	return c, dst
}

func TestRefreshReplacesAndRecordsMetadata(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	f := &fakeFetch{products: []models.Product{{Code: "P001", Stock: 10}}}
	c, dst := newCoordinator(f, clock)

	stale, _ := c.Stale(ctx)
	if !stale {
		t.Fatalf("never-synced collection must be stale")
	}

	n, err := c.Refresh(ctx)
	if err != nil || n != 1 {
		t.Fatalf("refresh: n=%d err=%v", n, err)
	}
	meta, ok, _ := dst.Meta(ctx)
	if !ok || meta.RecordCount != 1 || !meta.LastSync.Equal(clock.Now()) {
		t.Errorf("unexpected metadata %+v", meta)
	}

	stale, _ = c.Stale(ctx)
	if stale {
		t.Errorf("fresh collection must not be stale")
	}
	clock.Advance(2 * time.Minute)
	stale, _ = c.Stale(ctx)
	if !stale {
		t.Errorf("collection must be stale after the interval")
	}
}

func TestRefreshFailureLeavesMirrorUntouched(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetch{products: []models.Product{{Code: "P001", Stock: 10}}}
	c, dst := newCoordinator(f, clock)

	if _, err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	before, _, _ := dst.Meta(ctx)

	f.err = errors.New("sheet unavailable")
	clock.Advance(time.Hour)
	if _, err := c.Refresh(ctx); err == nil {
		t.Fatalf("expected error")
	}

	all, _ := dst.All(ctx)
	if len(all) != 1 || all[0].Stock != 10 {
		t.Errorf("mirror changed after failed refresh: %+v", all)
	}
	after, _, _ := dst.Meta(ctx)
	if !after.LastSync.Equal(before.LastSync) {
		t.Errorf("metadata must not move on failure")
	}
	if c.LastError() == nil {
		t.Errorf("expected LastError to be recorded")
	}
}

func TestTriggerIsNoOpWhileSyncing(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetch{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c, _ := newCoordinator(f, clock)

	if !c.Trigger() {
		t.Fatalf("first trigger must start a refresh")
	}
	<-f.entered
	if c.State() != Syncing {
		t.Fatalf("expected Syncing, got %v", c.State())
	}

	for i := 0; i < 5; i++ {
		if c.Trigger() {
			t.Errorf("trigger %d started a second refresh", i)
		}
	}

	close(f.gate)
	c.Stop()

	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected exactly one fetch, got %d", got)
	}
	if c.State() != Idle {
		t.Errorf("expected Idle after completion, got %v", c.State())
	}
}

func TestConcurrentRefreshSharesOneFetch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetch{gate: make(chan struct{}), entered: make(chan struct{}, 1), products: []models.Product{{Code: "A"}}}
	c, _ := newCoordinator(f, clock)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Refresh(context.Background())
		errs <- err
	}()
	<-f.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Refresh(context.Background())
		errs <- err
	}()

	// Give the second caller time to join the in-flight refresh.
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("refresh: %v", err)
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected one shared fetch, got %d", got)
	}
}

func TestSequentialRefreshAlwaysFetches(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetch{}
	c, _ := newCoordinator(f, clock)

	c.Refresh(context.Background())
	c.Refresh(context.Background())
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected two fetches, got %d", got)
	}
}

func TestBackgroundFailureIsReported(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetch{err: errors.New("boom")}
	dst := mirror.NewMemoryCollection(mirror.ProductsCollection, mirror.ProductKey, mirror.Append)

	reported := make(chan string, 1)
	c := NewCoordinator[models.Product](dst, f.Fetch, Options{
		Interval: time.Minute,
		Now:      clock.Now,
		OnError: func(collection string, err error) {
			reported <- collection
		},
	})

	c.Trigger()
	select {
	case name := <-reported:
		if name != mirror.ProductsCollection {
			t.Errorf("expected products, got %q", name)
		}
	case <-time.After(time.Second):
		t.Fatalf("background failure was not reported")
	}
	c.Stop()
}

func TestStartSyncsStaleCollectionAndStopHalts(t *testing.T) {
	f := &fakeFetch{products: []models.Product{{Code: "A"}}}
	dst := mirror.NewMemoryCollection(mirror.ProductsCollection, mirror.ProductKey, mirror.Append)
	c := NewCoordinator[models.Product](dst, f.Fetch, Options{Interval: 10 * time.Millisecond})

	c.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for f.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if f.calls.Load() < 2 {
		t.Fatalf("expected periodic refreshes, got %d", f.calls.Load())
	}
	n, _ := dst.Len(context.Background())
	if n != 1 {
		t.Errorf("expected mirror populated, got %d", n)
	}

	calls := f.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if f.calls.Load() != calls {
		t.Errorf("refreshes continued after Stop")
	}
	if c.Trigger() {
		t.Errorf("trigger after Stop must be a no-op")
	}
}
