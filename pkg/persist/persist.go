// Package persist bridges in-memory stores to a storage.Store using JSON.
//
// The bridge never returns errors to its callers. A missing key, a backend
// failure or a payload that no longer decodes all read as "no prior state",
// and failed writes are logged and dropped, so store mutators stay
// infallible while the in-memory state remains authoritative.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"tackleshop/pkg/logger"
	"tackleshop/pkg/storage"
)

// Op names the bridge operation passed to an error hook.
type Op string

// Bridge operations.
const (
	OpLoad   Op = "load"
	OpDecode Op = "decode"
	OpSave   Op = "save"
	OpRemove Op = "remove"
)

// Bridge serializes values to JSON under string keys.
type Bridge struct {
	store   storage.Store
	log     *logger.Logger
	onError func(op Op, key string, err error)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithErrorHook registers fn to observe every swallowed failure.
func WithErrorHook(fn func(op Op, key string, err error)) Option {
	return func(b *Bridge) { b.onError = fn }
}

// New returns a Bridge over store. A nil log discards output.
func New(store storage.Store, log *logger.Logger, opts ...Option) *Bridge {
	if log == nil {
		log = logger.Nop()
	}
	b := &Bridge{store: store, log: log}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load decodes the value under key into v and reports whether it did.
// v is left untouched when Load returns false.
func (b *Bridge) Load(ctx context.Context, key string, v any) bool {
	raw, err := b.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		b.fail(ctx, OpLoad, key, err)
		return false
	}
	if err := decode(raw, v); err != nil {
		b.fail(ctx, OpDecode, key, err)
		return false
	}
	return true
}

// Save encodes v and writes it under key.
func (b *Bridge) Save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		b.fail(ctx, OpSave, key, err)
		return
	}
	if err := b.store.Set(ctx, key, raw); err != nil {
		b.fail(ctx, OpSave, key, err)
	}
}

// Remove deletes key.
func (b *Bridge) Remove(ctx context.Context, key string) {
	if err := b.store.Delete(ctx, key); err != nil {
		b.fail(ctx, OpRemove, key, err)
	}
}

// decode unmarshals into a fresh value of v's type first so a payload that
// fails halfway never leaves v partially written.
func decode(raw []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

func (b *Bridge) fail(ctx context.Context, op Op, key string, err error) {
	if op == OpDecode {
		b.log.Warn(ctx, "discarding corrupt persisted state", "key", key, "error", err)
	} else {
		b.log.Error(ctx, "persisted state "+string(op)+" failed", "key", key, "error", err)
	}
	if b.onError != nil {
		b.onError(op, key, err)
	}
}
