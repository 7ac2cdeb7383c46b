// Package cart holds the shopping cart of one device.
package cart

import (
	"context"
	"sync"

	"tackleshop/pkg/persist"
)

// Key is the persisted key of the cart.
const Key = "cart"

// LineItem is one product in the cart with a price snapshot.
type LineItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image"`
}

// Snapshot is the cart state handed to subscribers.
type Snapshot struct {
	Items []LineItem
	Count int
	Total float64
}

// Store keeps cart lines in insertion order and writes every change
// through to the bridge.
type Store struct {
	mu     sync.Mutex
	items  []LineItem
	bridge *persist.Bridge

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

// New loads the persisted cart, starting empty when there is none.
func New(ctx context.Context, bridge *persist.Bridge) *Store {
	s := &Store{bridge: bridge, subs: make(map[int]func(Snapshot))}
	var items []LineItem
	if bridge.Load(ctx, Key, &items) {
		s.items = items
	}
	return s
}

// AddToCart increments the quantity of an existing line or appends a new one.
func (s *Store) AddToCart(ctx context.Context, item LineItem) {
	s.mutate(ctx, func(items []LineItem) []LineItem {
		if i := indexOf(items, item.ID); i >= 0 {
			items[i].Quantity += item.Quantity
			return items
		}
		return append(items, item)
	})
}

// RemoveFromCart deletes the line with id. Absent ids are ignored.
func (s *Store) RemoveFromCart(ctx context.Context, id int64) {
	s.mutate(ctx, func(items []LineItem) []LineItem {
		if i := indexOf(items, id); i >= 0 {
			return append(items[:i], items[i+1:]...)
		}
		return items
	})
}

// UpdateQuantity sets the quantity of line id. Zero removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id int64, quantity int) {
	if quantity == 0 {
		s.RemoveFromCart(ctx, id)
		return
	}
	s.mutate(ctx, func(items []LineItem) []LineItem {
		if i := indexOf(items, id); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	})
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) {
	s.mutate(ctx, func([]LineItem) []LineItem { return nil })
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

// Count returns the sum of quantities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return count(s.items)
}

// Total returns the sum of price times quantity.
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.items)
}

// Snapshot returns lines and derived totals read under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.items)
}

// Subscribe registers fn to receive a snapshot after every mutation and
// returns a function that unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) mutate(ctx context.Context, fn func([]LineItem) []LineItem) {
	s.mu.Lock()
	s.items = fn(s.items)
	persisted := clone(s.items)
	snap := snapshot(s.items)
	s.bridge.Save(ctx, Key, persisted)
	s.mu.Unlock()

	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func indexOf(items []LineItem, id int64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// clone never returns nil so an empty cart persists as [] rather than null.
func clone(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

func count(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func total(items []LineItem) float64 {
	var t float64
	for _, it := range items {
		t += it.Price * float64(it.Quantity)
	}
	return t
}

func snapshot(items []LineItem) Snapshot {
	return Snapshot{Items: clone(items), Count: count(items), Total: total(items)}
}
