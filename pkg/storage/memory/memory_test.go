package memory

import (
	"context"
	"errors"
	"testing"

	"tackleshop/pkg/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Set(ctx, "cart", []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "cart")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "[]" {
		t.Fatalf("expected [], got %s", got)
	}
	got[0] = 'x'
	again, _ := s.Get(ctx, "cart")
	if string(again) != "[]" {
		t.Fatalf("stored value was aliased: %s", again)
	}
	if err := s.Delete(ctx, "cart"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "cart"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "cart"); err != nil {
		t.Fatalf("delete of absent key: %v", err)
	}
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := storage.Namespace(s, "device:a")
	b := storage.Namespace(s, "device:b")

	if err := a.Set(ctx, "cart", []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := b.Get(ctx, "cart"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("namespaces leaked: %v", err)
	}
	raw, err := s.Get(ctx, "device:a:cart")
	if err != nil || string(raw) != "1" {
		t.Fatalf("expected prefixed key, got %q %v", raw, err)
	}
	if err := a.Delete(ctx, "cart"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Fatalf("expected empty store, got %v", s.Keys())
	}
}
