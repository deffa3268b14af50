// Package eventbus is an in-process fanout for daemon lifecycle signals.
package eventbus

import (
	"sync"
	"time"
)

// Event types published by the daemon.
const (
	TypeConfigReloaded     = "config.reloaded"
	TypeConfigReloadFailed = "config.reload_failed"
	TypePollCycle          = "poll.cycle"
	TypeNotificationShown  = "notification.shown"
	TypeNotificationFailed = "notification.failed"
)

// Event is a small in-memory signal.
//
// Publish never blocks. A subscriber whose buffer is full misses the event.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// PollCycle is the Data of TypePollCycle.
type PollCycle struct {
	Percent int           `json:"percent"`
	Status  string        `json:"status"`
	Matched []string      `json:"matched"`
	Shown   int           `json:"shown"`
	Next    time.Duration `json:"next"`
}

// Notification is the Data of TypeNotificationShown and TypeNotificationFailed.
type Notification struct {
	Rule     string `json:"rule"`
	ID       uint32 `json:"id,omitempty"`
	Replaced bool   `json:"replaced,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ConfigReloaded is the Data of TypeConfigReloaded.
type ConfigReloaded struct {
	Sections []string `json:"sections"`
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

// Nop returns a bus that drops everything.
func Nop() Bus { return nopBus{} }

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends are non-blocking, so holding the read lock is fine and keeps
	// unsubscribe from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

type nopBus struct{}

func (nopBus) Publish(Event) {}

func (nopBus) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
