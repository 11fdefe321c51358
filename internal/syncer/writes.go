package syncer

import (
	"errors"
	"sync"
)

// ErrSuperseded is returned when local writes kept landing while a refresh was fetching.
var ErrSuperseded = errors.New("refresh superseded by local writes")

// Writes tracks local writes to the mirror. A refresh only applies its snapshot when no write
// is in flight and none has happened since its fetch began, so a completed write is never
// overwritten by data fetched before it.
type Writes struct {
	mu     sync.Mutex
	cond   *sync.Cond
	gen    uint64
	active int
}

func NewWrites() *Writes {
	w := &Writes{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Begin marks a write in flight. Every Begin must be paired with one End.
func (w *Writes) Begin() {
	w.mu.Lock()
	w.active++
	w.gen++
	w.mu.Unlock()
}

func (w *Writes) End() {
	w.mu.Lock()
	w.active--
	w.gen++
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *Writes) generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}

// apply waits until no write is in flight, then runs fn unless a write began after gen was
// read. It reports whether fn ran.
func (w *Writes) apply(gen uint64, fn func() error) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.active > 0 {
		w.cond.Wait()
	}
	if w.gen != gen {
		return false, nil
	}
	return true, fn()
}
