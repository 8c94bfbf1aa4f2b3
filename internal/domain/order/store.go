package order

import (
	"sort"
	"sync"
)

// Store is the authoritative in-memory collection of orders, keyed by
// order id. All mutating and iterating operations run under a single
// exclusive lock; the order volume is bounded and human-interactive, so
// correctness wins over throughput. Mutations are atomic per order: no
// reader ever observes a half-updated entry.
type Store struct {
	mu     sync.Mutex
	orders map[string]*Order
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{orders: make(map[string]*Order)}
}

// UpsertIfAbsent inserts the order when no entry with the same id exists.
// It returns true when the order was inserted. At most one Order per id
// ever exists in the store.
func (s *Store) UpsertIfAbsent(o Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return false
	}
	cp := o.Clone()
	s.orders[o.ID] = &cp
	return true
}

// Has reports whether an order with the given id exists.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orders[id]
	return ok
}

// Find returns a copy of the order with the given id.
func (s *Store) Find(id string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// Mutate applies fn to the order with the given id while holding the
// store lock. It returns false when the order does not exist. fn must not
// block; it runs inside the exclusive region.
func (s *Store) Mutate(id string, fn func(*Order)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false
	}
	fn(o)
	return true
}

// MutateAll applies fn to each order with an id in ids, returning the
// number of orders touched.
func (s *Store) MutateAll(ids []string, fn func(*Order)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := 0
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			fn(o)
			touched++
		}
	}
	return touched
}

// RemoveWhere deletes every order matching the predicate and returns the
// number removed.
func (s *Store) RemoveWhere(pred func(*Order) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, o := range s.orders {
		if pred(o) {
			delete(s.orders, id)
			removed++
		}
	}
	return removed
}

// IDs returns the ids of all stored orders.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored orders.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Snapshot returns deep copies of all orders, newest first. The copies
// are taken under the lock; serialization happens outside it.
func (s *Store) Snapshot() []Order {
	s.mu.Lock()
	snapshot := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		snapshot = append(snapshot, o.Clone())
	}
	s.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].UpdatedAt != snapshot[j].UpdatedAt {
			return snapshot[i].UpdatedAt > snapshot[j].UpdatedAt
		}
		return snapshot[i].ID < snapshot[j].ID
	})
	return snapshot
}
