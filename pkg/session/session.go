// Package session holds the device-bound user state: the login flag and
// profile, order history and favorite products.
//
// Orders and favorites belong to the device rather than the account and
// survive logout. Login is a placeholder that accepts any non-empty
// credentials; it is not an authentication boundary.
package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"tackleshop/pkg/order"
	"tackleshop/pkg/persist"
)

// Persisted keys.
const (
	UserKey      = "user"
	OrdersKey    = "orders"
	FavoritesKey = "favorites"
)

// ErrEmptyCredentials is returned by Login when email or password is empty.
var ErrEmptyCredentials = errors.New("email and password are required")

// Profile is the shopper's contact and shipping details.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

// ProfilePatch carries a partial profile update; nil fields are kept.
type ProfilePatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	ZipCode *string `json:"zipCode,omitempty"`
}

func (p ProfilePatch) apply(dst *Profile) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&dst.Name, p.Name)
	set(&dst.Email, p.Email)
	set(&dst.Phone, p.Phone)
	set(&dst.Address, p.Address)
	set(&dst.City, p.City)
	set(&dst.State, p.State)
	set(&dst.ZipCode, p.ZipCode)
}

// record is the persisted shape of the "user" key.
type record struct {
	IsLoggedIn bool     `json:"isLoggedIn"`
	Profile    *Profile `json:"profile"`
}

// Snapshot is the session state handed to subscribers.
type Snapshot struct {
	IsLoggedIn bool
	Profile    *Profile
	Orders     []order.Order
	Favorites  []int64
}

// Store owns the session, order history and favorites of one device.
type Store struct {
	mu        sync.Mutex
	profile   *Profile
	orders    []order.Order
	favorites []int64
	bridge    *persist.Bridge

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

// New loads the three persisted records independently; a corrupt record
// only resets its own part of the state.
func New(ctx context.Context, bridge *persist.Bridge) *Store {
	s := &Store{bridge: bridge, subs: make(map[int]func(Snapshot))}

	var rec record
	if bridge.Load(ctx, UserKey, &rec) && rec.IsLoggedIn && rec.Profile != nil {
		s.profile = rec.Profile
	}
	var orders []order.Order
	if bridge.Load(ctx, OrdersKey, &orders) {
		s.orders = orders
	}
	var favorites []int64
	if bridge.Load(ctx, FavoritesKey, &favorites) {
		s.favorites = favorites
	}
	return s
}

// Login signs in with any non-empty credentials. The profile name defaults
// to the part of the email before the first "@". Empty credentials leave
// the session unchanged and return ErrEmptyCredentials.
func (s *Store) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrEmptyCredentials
	}
	name, _, _ := strings.Cut(email, "@")
	s.mutate(func() {
		s.profile = &Profile{Name: name, Email: email}
		s.saveUser(ctx)
	})
	return nil
}

// Logout clears the profile and removes the persisted session. Orders and
// favorites are kept.
func (s *Store) Logout(ctx context.Context) {
	s.mutate(func() {
		s.profile = nil
		s.bridge.Remove(ctx, UserKey)
	})
}

// UpdateProfile merges patch onto the profile. It does nothing while
// logged out.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) {
	s.mutate(func() {
		if s.profile == nil {
			return
		}
		updated := *s.profile
		patch.apply(&updated)
		s.profile = &updated
		s.saveUser(ctx)
	})
}

// AddOrder prepends o to the order history.
func (s *Store) AddOrder(ctx context.Context, o order.Order) {
	s.mutate(func() {
		s.orders = append([]order.Order{o.Clone()}, s.orders...)
		s.bridge.Save(ctx, OrdersKey, s.orders)
	})
}

// ToggleFavorite adds or removes productID and returns whether it is now a
// favorite.
func (s *Store) ToggleFavorite(ctx context.Context, productID int64) bool {
	var now bool
	s.mutate(func() {
		if i := slices.Index(s.favorites, productID); i >= 0 {
			s.favorites = slices.Delete(s.favorites, i, i+1)
		} else {
			s.favorites = append(s.favorites, productID)
			now = true
		}
		s.bridge.Save(ctx, FavoritesKey, nonNil(s.favorites))
	})
	return now
}

// IsFavorite reports whether productID is a favorite.
func (s *Store) IsFavorite(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.favorites, productID)
}

// IsLoggedIn reports whether a profile is active.
func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile != nil
}

// Profile returns a copy of the active profile and whether there is one.
func (s *Store) Profile() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// Orders returns the order history, most recent first.
func (s *Store) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.orders)
}

// Favorites returns the favorite product ids in the order they were added.
func (s *Store) Favorites() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(nonNil(s.favorites))
}

// Snapshot returns the whole state read under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
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

// saveUser must be called with s.mu held.
func (s *Store) saveUser(ctx context.Context) {
	s.bridge.Save(ctx, UserKey, record{IsLoggedIn: true, Profile: s.profile})
}

func (s *Store) snapshot() Snapshot {
	snap := Snapshot{
		IsLoggedIn: s.profile != nil,
		Orders:     cloneOrders(s.orders),
		Favorites:  slices.Clone(nonNil(s.favorites)),
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshot()
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

// cloneOrders copies the history down to each order's items.
func cloneOrders(orders []order.Order) []order.Order {
	out := make([]order.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
