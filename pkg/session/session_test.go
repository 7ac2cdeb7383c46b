package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tackleshop/pkg/order"
	"tackleshop/pkg/persist"
	"tackleshop/pkg/storage"
	"tackleshop/pkg/storage/memory"
)

func newStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	backend := memory.New()
	return New(context.Background(), persist.New(backend, nil)), backend
}

func strp(s string) *string { return &s }

func TestSession_LoginLogoutScenario(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)

	require.NoError(t, s.Login(ctx, "jane@example.com", "pw"))
	p, ok := s.Profile()
	require.True(t, ok)
	assert.Equal(t, "jane", p.Name)
	assert.Equal(t, "jane@example.com", p.Email)
	assert.True(t, s.IsLoggedIn())

	raw, err := backend.Get(ctx, UserKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isLoggedIn":true,"profile":{"name":"jane","email":"jane@example.com",
		"phone":"","address":"","city":"","state":"","zipCode":""}}`, string(raw))

	s.Logout(ctx)
	assert.False(t, s.IsLoggedIn())
	_, ok = s.Profile()
	assert.False(t, ok)
	_, err = backend.Get(ctx, UserKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSession_LoginRejectsEmptyCredentials(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)

	assert.ErrorIs(t, s.Login(ctx, "", "pw"), ErrEmptyCredentials)
	assert.ErrorIs(t, s.Login(ctx, "a@b.c", ""), ErrEmptyCredentials)
	assert.False(t, s.IsLoggedIn())
	_, err := backend.Get(ctx, UserKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSession_LoginNameFromLocalPart(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"jane@example.com":  "jane",
		"a@b@c":             "a",
		"no-at-sign":        "no-at-sign",
		"@leading.example":  "",
		"first.last@x.test": "first.last",
	}
	for email, want := range cases {
		t.Run(email, func(t *testing.T) {
			s, _ := newStore(t)
			s.Logout(ctx)
			require.NoError(t, s.Login(ctx, email, "pw"))
			p, _ := s.Profile()
			assert.Equal(t, email, p.Email)
			assert.Equal(t, want, p.Name)
		})
	}
}

func TestSession_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	s.UpdateProfile(ctx, ProfilePatch{City: strp("Duluth")})
	assert.False(t, s.IsLoggedIn(), "update while logged out is a no-op")

	require.NoError(t, s.Login(ctx, "jane@example.com", "pw"))
	s.UpdateProfile(ctx, ProfilePatch{City: strp("Duluth"), ZipCode: strp("55802")})
	s.UpdateProfile(ctx, ProfilePatch{Phone: strp("555-0100")})

	p, ok := s.Profile()
	require.True(t, ok)
	assert.Equal(t, Profile{
		Name:    "jane",
		Email:   "jane@example.com",
		Phone:   "555-0100",
		City:    "Duluth",
		ZipCode: "55802",
	}, p)
}

func TestSession_AddOrderPrepends(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	s.AddOrder(ctx, order.Order{ID: "#ORD-1", Status: order.StatusPending})
	s.AddOrder(ctx, order.Order{ID: "#ORD-2", Status: order.StatusPending})

	orders := s.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "#ORD-2", orders[0].ID)
	assert.Equal(t, "#ORD-1", orders[1].ID)
}

func TestSession_ToggleFavoriteIsInvolution(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.ToggleFavorite(ctx, 4)

	for _, id := range []int64{1, 4, 7} {
		before := s.IsFavorite(id)
		s.ToggleFavorite(ctx, id)
		assert.NotEqual(t, before, s.IsFavorite(id))
		s.ToggleFavorite(ctx, id)
		assert.Equal(t, before, s.IsFavorite(id), "id %d", id)
	}
	assert.Equal(t, []int64{4}, s.Favorites())
}

func TestSession_OrdersAndFavoritesSurviveLogout(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Login(ctx, "jane@example.com", "pw"))
	s.AddOrder(ctx, order.Order{ID: "#ORD-1"})
	s.ToggleFavorite(ctx, 3)
	s.Logout(ctx)

	require.NoError(t, s.Login(ctx, "bob@example.com", "pw"))
	assert.Len(t, s.Orders(), 1)
	assert.True(t, s.IsFavorite(3))
	p, _ := s.Profile()
	assert.Equal(t, "bob", p.Name)
}

func TestSession_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := New(ctx, persist.New(backend, nil))

	require.NoError(t, s.Login(ctx, "jane@example.com", "pw"))
	s.UpdateProfile(ctx, ProfilePatch{Address: strp("1 Lake Rd")})
	s.AddOrder(ctx, order.Order{
		ID: "#ORD-1", Date: "3/7/2024", Total: 31.6,
		Items:  []order.Item{{Name: "Rod", Quantity: 2, Price: 10}},
		Status: order.StatusPending,
	})
	s.ToggleFavorite(ctx, 2)
	s.ToggleFavorite(ctx, 5)

	reloaded := New(ctx, persist.New(backend, nil))
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestSession_CorruptRecordsAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	require.NoError(t, backend.Set(ctx, UserKey, []byte(`{"isLoggedIn":true,"profile":{"name":"jane","email":"jane@example.com"}}`)))
	require.NoError(t, backend.Set(ctx, OrdersKey, []byte(`[{"id":"#ORD-1","status":"pending"}]`)))
	require.NoError(t, backend.Set(ctx, FavoritesKey, []byte(`[1,`)))

	s := New(ctx, persist.New(backend, nil))
	assert.True(t, s.IsLoggedIn())
	assert.Len(t, s.Orders(), 1)
	assert.Empty(t, s.Favorites())
}

func TestSession_LoggedOutRecordLoadsAsLoggedOut(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	require.NoError(t, backend.Set(ctx, UserKey, []byte(`{"isLoggedIn":false,"profile":null}`)))

	s := New(ctx, persist.New(backend, nil))
	assert.False(t, s.IsLoggedIn())
}

func TestSession_Subscribe(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var got []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })
	defer cancel()

	require.NoError(t, s.Login(ctx, "jane@example.com", "pw"))
	s.ToggleFavorite(ctx, 1)

	require.Len(t, got, 2)
	assert.True(t, got[0].IsLoggedIn)
	assert.Equal(t, []int64{1}, got[1].Favorites)
}

func TestSession_OrdersDoNotShareItems(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	placed := order.Order{ID: "#ORD-1", Items: []order.Item{{Name: "Rod", Quantity: 1, Price: 10}}, Status: order.StatusPending}
	s.AddOrder(ctx, placed)
	placed.Items[0].Quantity = 50

	var seen Snapshot
	cancel := s.Subscribe(func(snap Snapshot) { seen = snap })
	defer cancel()
	s.ToggleFavorite(ctx, 3)
	require.Len(t, seen.Orders, 1)
	seen.Orders[0].Items[0].Quantity = 77

	got := s.Orders()
	got[0].Items[0].Quantity = 99
	got[0].Items = append(got[0].Items, order.Item{Name: "Reel"})

	stored := s.Orders()
	require.Len(t, stored[0].Items, 1)
	assert.Equal(t, 1, stored[0].Items[0].Quantity)
	assert.Equal(t, 1, s.Snapshot().Orders[0].Items[0].Quantity)
}
