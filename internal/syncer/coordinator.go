// Package syncer keeps mirrored collections fresh relative to the remote store.
package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
)

type State int32

const (
	Idle State = iota
	Syncing
)

func (s State) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Fetch loads the authoritative records of a collection.
type Fetch[T any] func(ctx context.Context) ([]T, error)

type Options struct {
	// Interval after which a collection counts as stale.
	Interval time.Duration
	// CheckEvery is how often the background loop looks for staleness. Defaults to Interval/4.
	CheckEvery time.Duration
	Now        func() time.Time
	Log        Log
	// OnError is told about failed background refreshes, which have no caller to return to.
	OnError func(collection string, err error)
	// Writes is shared with whoever writes to the mirror outside of refreshes.
	Writes *Writes
}

// maxAttempts bounds how often a refresh fetches again after overlapping local writes.
const maxAttempts = 3

// Coordinator refreshes one mirrored collection. At most one fetch runs at a time.
type Coordinator[T any] struct {
	dst      mirror.Collection[T]
	fetch    Fetch[T]
	interval time.Duration
	check    time.Duration
	now      func() time.Time
	log      Log
	onError  func(string, error)
	writes   *Writes

	group   singleflight.Group
	syncing atomic.Bool

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	lastErr error
	wg      sync.WaitGroup
}

func NewCoordinator[T any](dst mirror.Collection[T], fetch Fetch[T], opts Options) *Coordinator[T] {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.CheckEvery <= 0 {
		opts.CheckEvery = max(opts.Interval/4, time.Millisecond)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Writes == nil {
		opts.Writes = NewWrites()
	}
	return &Coordinator[T]{
		dst:      dst,
		fetch:    fetch,
		interval: opts.Interval,
		check:    opts.CheckEvery,
		now:      opts.Now,
		log:      opts.Log,
		onError:  opts.OnError,
		writes:   opts.Writes,
		ctx:      context.Background(),
	}
}

func (c *Coordinator[T]) Name() string {
	return c.dst.Name()
}

func (c *Coordinator[T]) State() State {
	if c.syncing.Load() {
		return Syncing
	}
	return Idle
}

// LastError returns the error of the most recent refresh, nil if it succeeded.
func (c *Coordinator[T]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stale reports whether the collection was never synced or was synced longer than Interval ago.
func (c *Coordinator[T]) Stale(ctx context.Context) (bool, error) {
	meta, ok, err := c.dst.Meta(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return c.now().Sub(meta.LastSync) > c.interval, nil
}

// Refresh fetches the collection and replaces the mirrored copy. Callers arriving while a
// refresh is in flight wait for it and share its result. On failure the mirror is untouched.
func (c *Coordinator[T]) Refresh(ctx context.Context) (int, error) {
	v, err, _ := c.group.Do(c.dst.Name(), func() (any, error) {
		c.syncing.Store(true)
		defer c.syncing.Store(false)

		n, err := c.run(ctx)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (c *Coordinator[T]) run(ctx context.Context) (int, error) {
	start := c.now()
	for attempt := 1; ; attempt++ {
		gen := c.writes.generation()
		records, err := c.fetch(ctx)
		if err != nil {
			if c.log != nil {
				c.log.Warn("sync fetch failed", zap.String("collection", c.dst.Name()), zap.Error(err))
			}
			return 0, err
		}

		applied, err := c.writes.apply(gen, func() error {
			if err := c.dst.ReplaceAll(ctx, records); err != nil {
				return err
			}
			return c.dst.SetMeta(ctx, models.SyncMetadata{LastSync: c.now(), RecordCount: len(records)})
		})
		if err != nil {
			return 0, err
		}
		if applied {
			if c.log != nil {
				c.log.Info("collection synced",
					zap.String("collection", c.dst.Name()),
					zap.Int("records", len(records)),
					zap.Duration("elapsed", c.now().Sub(start)))
			}
			return len(records), nil
		}
		if attempt == maxAttempts {
			return 0, ErrSuperseded
		}
		if c.log != nil {
			c.log.Info("fetch overlapped a local write, fetching again", zap.String("collection", c.dst.Name()))
		}
	}
}

// Trigger starts a background refresh unless one is already running. It reports whether a
// refresh was started.
func (c *Coordinator[T]) Trigger() bool {
	if c.syncing.Load() {
		return false
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	ctx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if _, err := c.Refresh(ctx); err != nil {
			if c.log != nil {
				c.log.Error("background sync failed", zap.String("collection", c.dst.Name()), zap.Error(err))
			}
			if c.onError != nil {
				c.onError(c.dst.Name(), err)
			}
		}
	}()
	return true
}

// TriggerIfStale starts a background refresh when the collection is stale.
func (c *Coordinator[T]) TriggerIfStale(ctx context.Context) bool {
	stale, err := c.Stale(ctx)
	if err != nil || !stale {
		return false
	}
	return c.Trigger()
}

// Start runs the staleness loop until ctx is done or Stop is called.
func (c *Coordinator[T]) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.stopped = false
	loopCtx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.check)
		defer ticker.Stop()

		c.TriggerIfStale(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.TriggerIfStale(loopCtx)
			}
		}
	}()
}

// Stop cancels the loop and any background refresh, and waits for them to return.
func (c *Coordinator[T]) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}
