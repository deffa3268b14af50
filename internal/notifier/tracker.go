package notifier

import "sync"

// Tracker maps rule names to the notification id shown for them.
// It is safe for concurrent use.
type Tracker struct {
	mu  sync.Mutex
	ids map[string]uint32
}

func NewTracker() *Tracker {
	return &Tracker{ids: map[string]uint32{}}
}

func (t *Tracker) Get(name string) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.ids[name]
	return id, ok
}

// Remember records id for name unless name already has one.
// It reports whether the id was recorded.
func (t *Tracker) Remember(name string, id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ids[name]; ok {
		return false
	}
	t.ids[name] = id
	return true
}

// Prune drops every name for which keep returns false and returns how many
// entries were removed.
func (t *Tracker) Prune(keep func(name string) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for name := range t.ids {
		if !keep(name) {
			delete(t.ids, name)
			n++
		}
	}
	return n
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}
