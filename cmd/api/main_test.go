package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tackleshop/pkg/catalog"
	"tackleshop/pkg/checkout"
	"tackleshop/pkg/config"
	"tackleshop/pkg/device"
	"tackleshop/pkg/logger"
	"tackleshop/pkg/order"
	"tackleshop/pkg/storage/memory"
)

func setup(t *testing.T, src catalog.Source) *http.Client {
	t.Helper()
	log = logger.Nop()
	fixed := time.Date(2024, 3, 7, 15, 4, 5, 0, time.UTC)
	registry = device.NewRegistry(memory.New(), log, func() time.Time { return fixed })
	products = catalog.New(src)

	srv := httptest.NewServer(newRouter())
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := srv.Client()
	client.Jar = jar
	base = srv.URL
	return client
}

var base string

func do(t *testing.T, c *http.Client, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, base+path, &buf)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestCart_AddUpdateRemove(t *testing.T) {
	c := setup(t, catalog.EmbeddedSource{})

	var got cartResponse
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/cart/items", addItemRequest{ID: 1, Quantity: 2}, &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Count)
	assert.NotEmpty(t, got.Items[0].Name)
	price := got.Items[0].Price
	assert.InDelta(t, price*2, got.Total, 1e-9)

	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/cart/items", addItemRequest{ID: 1}, &got))
	assert.Equal(t, 3, got.Count)
	assert.Len(t, got.Items, 1)

	require.Equal(t, http.StatusOK, do(t, c, http.MethodPut, "/cart/items/1", quantityRequest{Quantity: 5}, &got))
	assert.Equal(t, 5, got.Count)

	require.Equal(t, http.StatusOK, do(t, c, http.MethodDelete, "/cart/items/1", nil, &got))
	assert.Empty(t, got.Items)
	assert.Zero(t, got.Total)
}

func TestCart_UnknownProduct(t *testing.T) {
	c := setup(t, catalog.EmbeddedSource{})
	assert.Equal(t, http.StatusNotFound, do(t, c, http.MethodPost, "/cart/items", addItemRequest{ID: 999}, nil))
}

func TestCart_ScopedToDevice(t *testing.T) {
	c := setup(t, catalog.EmbeddedSource{})
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/cart/items", addItemRequest{ID: 2}, nil))

	other, err := cookiejar.New(nil)
	require.NoError(t, err)
	c2 := &http.Client{Jar: other}

	var got cartResponse
	require.Equal(t, http.StatusOK, do(t, c2, http.MethodGet, "/cart", nil, &got))
	assert.Empty(t, got.Items)

	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/cart", nil, &got))
	assert.Equal(t, 1, got.Count)
}

func TestSession_LoginLogout(t *testing.T) {
	c := setup(t, catalog.EmbeddedSource{})

	assert.Equal(t, http.StatusBadRequest, do(t, c, http.MethodPost, "/session/login", loginRequest{Email: "jane@x.com"}, nil))

	var s sessionResponse
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/session/login", loginRequest{Email: "jane@x.com", Password: "pw"}, &s))
	assert.True(t, s.IsLoggedIn)
	require.NotNil(t, s.Profile)
	assert.Equal(t, "jane", s.Profile.Name)

	city := "Tampa"
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPatch, "/session/profile", map[string]string{"city": city}, &s))
	assert.Equal(t, city, s.Profile.City)
	assert.Equal(t, "jane@x.com", s.Profile.Email)

	require.Equal(t, http.StatusNoContent, do(t, c, http.MethodPost, "/session/logout", nil, nil))
	s = sessionResponse{}
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/session", nil, &s))
	assert.False(t, s.IsLoggedIn)
	assert.Nil(t, s.Profile)
}

func TestFavorites_Toggle(t *testing.T) {
	c := setup(t, catalog.EmbeddedSource{})

	var f favoriteResponse
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/favorites/4", nil, &f))
	assert.True(t, f.Favorite)

	var ids []int64
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/favorites", nil, &ids))
	assert.Equal(t, []int64{4}, ids)

	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/favorites/4", nil, &f))
	assert.False(t, f.Favorite)
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/favorites", nil, &ids))
	assert.Empty(t, ids)
}

func TestCatalog_Routes(t *testing.T) {
	c := setup(t, catalog.EmbeddedSource{})

	var all []catalog.Product
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/products", nil, &all))
	assert.NotEmpty(t, all)

	var p catalog.Product
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/products/1", nil, &p))
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, http.StatusNotFound, do(t, c, http.MethodGet, "/products/999", nil, nil))

	var cats []catalog.Category
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/categories", nil, &cats))
	assert.Len(t, cats, len(catalog.Categories()))

	var cat categoryResponse
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/categories/reels", nil, &cat))
	assert.Equal(t, "reels", cat.Slug)
	for _, p := range cat.Products {
		assert.Equal(t, "reels", p.Category)
	}
	assert.Equal(t, http.StatusNotFound, do(t, c, http.MethodGet, "/categories/boats", nil, nil))

	var found []catalog.Product
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/search?sort=price-low", nil, &found))
	for i := 1; i < len(found); i++ {
		assert.LessOrEqual(t, found[i-1].Price, found[i].Price)
	}
	assert.Equal(t, http.StatusBadRequest, do(t, c, http.MethodGet, "/search?sort=cheapest", nil, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, c, http.MethodGet, "/search?min=abc", nil, nil))
}

func TestCatalog_Unavailable(t *testing.T) {
	calls := 0
	c := setup(t, catalog.SourceFunc(func(context.Context) ([]catalog.Product, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return catalog.EmbeddedSource{}.Fetch(context.Background())
	}))

	assert.Equal(t, http.StatusServiceUnavailable, do(t, c, http.MethodGet, "/products", nil, nil))
	assert.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/products", nil, nil))
}

func TestCheckout_Flow(t *testing.T) {
	c := setup(t, catalog.EmbeddedSource{})

	assert.Equal(t, http.StatusConflict, do(t, c, http.MethodPost, "/checkout/shipping", checkout.ShippingForm{}, nil))
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/cart/items", addItemRequest{ID: 3, Quantity: 1}, nil))

	var q checkout.Quote
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/checkout/quote", nil, &q))
	assert.Positive(t, q.Total)

	assert.Equal(t, http.StatusConflict, do(t, c, http.MethodPost, "/checkout/payment", checkout.PaymentForm{CardNumber: "4242"}, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, c, http.MethodPost, "/checkout/shipping", checkout.ShippingForm{FirstName: "Jane"}, nil))

	ship := checkout.ShippingForm{
		FirstName: "Jane", LastName: "Doe", Email: "jane@x.com", Phone: "555",
		Address: "1 Pier Rd", City: "Tampa", State: "FL", Zip: "33601",
	}
	var step stepResponse
	require.Equal(t, http.StatusOK, do(t, c, http.MethodPost, "/checkout/shipping", ship, &step))
	assert.Equal(t, checkout.StepPayment, step.Step)

	var o order.Order
	pay := checkout.PaymentForm{CardNumber: "4242424242424242", Expiry: "12/30", CVC: "123"}
	require.Equal(t, http.StatusCreated, do(t, c, http.MethodPost, "/checkout/payment", pay, &o))
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "3/7/2024", o.Date)
	assert.InDelta(t, q.Total, o.Total, 0.005)

	var orders []order.Order
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/orders", nil, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)

	var empty cartResponse
	require.Equal(t, http.StatusOK, do(t, c, http.MethodGet, "/cart", nil, &empty))
	assert.Empty(t, empty.Items)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := openBackend(ctx, config.Config{StorageBackend: config.BackendMemory})
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.NoError(t, closeFn())

	s, closeFn, err = openBackend(ctx, config.Config{StorageBackend: config.BackendSQLite, SQLitePath: t.TempDir() + "/api.db"})
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.NoError(t, closeFn())

	_, _, err = openBackend(ctx, config.Config{StorageBackend: "etcd"})
	assert.Error(t, err)
}
