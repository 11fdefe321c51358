// Package notify keeps a short feed of user-facing messages.
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

const DefaultCapacity = 50

type Notification struct {
	ID        uint64    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable,omitempty"`
	Time      time.Time `json:"time"`
}

// Feed is a bounded ring of notifications. Once full, the oldest entries are dropped.
type Feed struct {
	mu     sync.Mutex
	buf    []Notification
	next   int
	size   int
	lastID uint64
	now    func() time.Time
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{buf: make([]Notification, capacity), now: time.Now}
}

func (f *Feed) Publish(level Level, message string) Notification {
	return f.publish(Notification{Level: level, Message: message})
}

// PublishRetryable publishes an error the user may simply try again.
func (f *Feed) PublishRetryable(message string) Notification {
	return f.publish(Notification{Level: Error, Message: message, Retryable: true})
}

func (f *Feed) publish(n Notification) Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastID++
	n.ID = f.lastID
	n.Time = f.now()
	f.buf[f.next] = n
	f.next = (f.next + 1) % len(f.buf)
	if f.size < len(f.buf) {
		f.size++
	}
	return n
}

// Recent returns the retained notifications with an ID greater than since, oldest first.
func (f *Feed) Recent(since uint64) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []Notification{}
	start := (f.next - f.size + len(f.buf)) % len(f.buf)
	for i := 0; i < f.size; i++ {
		n := f.buf[(start+i)%len(f.buf)]
		if n.ID > since {
			out = append(out, n)
		}
	}
	return out
}
