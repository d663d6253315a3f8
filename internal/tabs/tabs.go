// Package tabs publishes browser tab lifecycle events and remembers the last
// URL seen for every open tab.
package tabs

import (
	"sort"
	"sync"
)

// ID is a stable tab handle (the CDP target id for rod-backed tabs).
type ID string

const StatusComplete = "complete"

type Info struct {
	ID  ID
	URL string
}

type Updated struct {
	Tab    ID
	Status string
	URL    string
}

type Removed struct {
	Tab ID
}

// Listener receives tab events. Either func may be nil.
type Listener struct {
	OnUpdated func(Updated)
	OnRemoved func(Removed)
}

// Hub fans tab events out to listeners. Events are delivered synchronously on
// the emitting goroutine, in subscription order.
type Hub struct {
	mu        sync.Mutex
	urls      map[ID]string
	listeners map[int]Listener
	nextID    int
}

func NewHub() *Hub {
	return &Hub{urls: map[ID]string{}, listeners: map[int]Listener{}}
}

func (h *Hub) Subscribe(l Listener) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Get returns the last known URL of a tab.
func (h *Hub) Get(id ID) (Info, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u, ok := h.urls[id]
	if !ok {
		return Info{}, false
	}
	return Info{ID: id, URL: u}, true
}

// Navigated records a URL change that has not finished loading yet.
func (h *Hub) Navigated(id ID, url string) {
	h.mu.Lock()
	h.urls[id] = url
	h.mu.Unlock()
}

// Complete records that a tab finished loading url and notifies listeners.
func (h *Hub) Complete(id ID, url string) {
	h.mu.Lock()
	h.urls[id] = url
	ls := h.snapshot()
	h.mu.Unlock()

	ev := Updated{Tab: id, Status: StatusComplete, URL: url}
	for _, l := range ls {
		if l.OnUpdated != nil {
			l.OnUpdated(ev)
		}
	}
}

// Close notifies listeners that a tab is gone. The tab's last URL stays
// readable through Get until every listener has returned.
func (h *Hub) Close(id ID) {
	h.mu.Lock()
	ls := h.snapshot()
	h.mu.Unlock()

	ev := Removed{Tab: id}
	for _, l := range ls {
		if l.OnRemoved != nil {
			l.OnRemoved(ev)
		}
	}

	h.mu.Lock()
	delete(h.urls, id)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []Listener {
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.listeners[id])
	}
	return out
}
