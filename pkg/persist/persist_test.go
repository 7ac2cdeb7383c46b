package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tackleshop/pkg/storage"
	"tackleshop/pkg/storage/memory"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Set(context.Context, string, []byte) error   { return f.err }
func (f failingStore) Delete(context.Context, string) error        { return f.err }

type failure struct {
	op  Op
	key string
}

func TestBridge_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New(memory.New(), nil)

	b.Save(ctx, "favorites", []int64{3, 1})

	var got []int64
	require.True(t, b.Load(ctx, "favorites", &got))
	assert.Equal(t, []int64{3, 1}, got)

	b.Remove(ctx, "favorites")
	got = []int64{9}
	assert.False(t, b.Load(ctx, "favorites", &got))
	assert.Equal(t, []int64{9}, got, "absent load leaves target untouched")
}

func TestBridge_CorruptPayloadReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	var seen []failure
	b := New(store, nil, WithErrorHook(func(op Op, key string, err error) {
		seen = append(seen, failure{op, key})
	}))

	cases := map[string]string{
		"truncated":  `[{"id":1,`,
		"wrong type": `{"id":1}`,
		"not json":   `hello`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "cart", []byte(payload)))
			got := []int64{42}
			assert.False(t, b.Load(ctx, "cart", &got))
			assert.Equal(t, []int64{42}, got)
		})
	}
	require.Len(t, seen, len(cases))
	for _, f := range seen {
		assert.Equal(t, failure{OpDecode, "cart"}, f)
	}
}

func TestBridge_BackendFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	var ops []Op
	b := New(failingStore{err: boom}, nil, WithErrorHook(func(op Op, _ string, err error) {
		assert.ErrorIs(t, err, boom)
		ops = append(ops, op)
	}))

	var v []int64
	assert.False(t, b.Load(ctx, "orders", &v))
	b.Save(ctx, "orders", []int64{1})
	b.Remove(ctx, "orders")

	assert.Equal(t, []Op{OpLoad, OpSave, OpRemove}, ops)
}

func TestBridge_NotFoundIsNotAFailure(t *testing.T) {
	called := false
	b := New(failingStore{err: storage.ErrNotFound}, nil, WithErrorHook(func(Op, string, error) { called = true }))

	var v []int64
	assert.False(t, b.Load(context.Background(), "cart", &v))
	assert.False(t, called)
}
