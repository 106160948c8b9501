package kvstore

import (
	"encoding/json"
	"sync"
)

// Listener receives the current value of a key after it changes. ok is
// false when the key was deleted or its entry is no longer readable.
type Listener func(value json.RawMessage, ok bool)

// hub fans changes out to listeners of the same physical key. All views of a
// Store share one hub.
type hub struct {
	mu     sync.RWMutex
	next   uint64
	subs   map[string]map[uint64]Listener
	origin string
}

func newHub(origin string) *hub {
	return &hub{
		subs:   make(map[string]map[uint64]Listener),
		origin: origin,
	}
}

func (h *hub) subscribe(key string, fn Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]Listener)
	}
	h.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
}

func (h *hub) has(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key]) > 0
}

// dispatch calls listeners synchronously, outside the lock, so a listener
// may subscribe or write without deadlocking.
func (h *hub) dispatch(key string, value json.RawMessage, ok bool) {
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		listeners = append(listeners, fn)
	}
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn(value, ok)
	}
}
