// Package store holds the session-lifetime event store: an append-only,
// deduplicating collection of received events keyed by event ID. Nothing is
// persisted; a restart starts empty.
package store

import (
	"sort"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// ChangeListener is invoked after every successful insert. Listeners run on
// the inserting goroutine, outside the store lock, so they may query the
// store but should hand heavy work elsewhere.
type ChangeListener func()

// Store is an in-memory, deduplicating event collection. Event IDs are
// content-addressed, so two events with the same ID are the same event and
// the second insert is a no-op.
type Store struct {
	mu        sync.RWMutex
	events    map[string]*nostr.Event
	listeners []ChangeListener
}

// New creates an empty store
func New() *Store {
	return &Store{
		events: make(map[string]*nostr.Event),
	}
}

// OnChange registers a listener fired after each insert that changed the
// store. Registration order is the notification order.
func (s *Store) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Add inserts an event if its ID is not already present. Returns true when
// the store changed. Duplicate inserts do not notify listeners.
func (s *Store) Add(event *nostr.Event) bool {
	if event == nil || event.ID == "" {
		return false
	}

	s.mu.Lock()
	if _, exists := s.events[event.ID]; exists {
		s.mu.Unlock()
		return false
	}
	s.events[event.ID] = event
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return true
}

// Get returns the event with the given ID, if present
func (s *Store) Get(id string) (*nostr.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	return event, ok
}

// Len returns the number of stored events
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// QueryByKind returns a snapshot of all events of the given kind, sorted by
// created_at descending with ties broken by ID ascending. Relay delivery
// order is never chronological, so callers must rely on this sort rather
// than arrival order.
func (s *Store) QueryByKind(kind int) []*nostr.Event {
	s.mu.RLock()
	events := make([]*nostr.Event, 0, len(s.events))
	for _, event := range s.events {
		if event.Kind == kind {
			events = append(events, event)
		}
	}
	s.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID < events[j].ID
	})

	return events
}
