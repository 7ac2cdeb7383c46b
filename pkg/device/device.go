// Package device keeps one cart and session per client device on a shared
// storage backend.
package device

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"tackleshop/pkg/cart"
	"tackleshop/pkg/checkout"
	"tackleshop/pkg/logger"
	"tackleshop/pkg/order"
	"tackleshop/pkg/persist"
	"tackleshop/pkg/session"
	"tackleshop/pkg/storage"
)

// DefaultFlowCacheSize bounds the checkouts a Registry keeps in progress.
const DefaultFlowCacheSize = 4096

const lockStripes = 256

// Device is the state bound to one client.
type Device struct {
	ID      string
	Cart    *cart.Store
	Session *session.Store

	ids   *order.IDGenerator
	now   func() time.Time
	flows *lru.Cache[string, *checkout.Flow]

	mu   sync.Mutex
	flow *checkout.Flow
}

func newDevice(ctx context.Context, id string, bridge *persist.Bridge, log *logger.Logger, ids *order.IDGenerator, now func() time.Time) *Device {
	d := &Device{
		ID:      id,
		Cart:    cart.New(ctx, bridge),
		Session: session.New(ctx, bridge),
		ids:     ids,
		now:     now,
	}
	d.Cart.Subscribe(func(s cart.Snapshot) {
		log.Debug(ctx, "cart changed", "lines", len(s.Items), "count", s.Count, "total", s.Total)
	})
	d.Session.Subscribe(func(s session.Snapshot) {
		log.Debug(ctx, "session changed", "logged_in", s.IsLoggedIn, "orders", len(s.Orders), "favorites", len(s.Favorites))
	})
	return d
}

// Checkout returns the checkout in progress, starting a new one when there
// is none or the last one was confirmed. A checkout begun on an earlier
// request is rebound to this device's stores.
func (d *Device) Checkout() *checkout.Flow {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flow == nil && d.flows != nil {
		if f, ok := d.flows.Get(d.ID); ok {
			f.Bind(d.Cart, d.Session)
			d.flow = f
		}
	}
	if d.flow == nil || d.flow.Step() == checkout.StepConfirmation {
		d.flow = checkout.NewFlow(d.Cart, d.Session, d.ids, d.now)
		if d.flows != nil {
			d.flows.Add(d.ID, d.flow)
		}
	}
	return d.flow
}

// Registry opens devices over one backend. Each device sees only keys
// under "device:<id>". Cart and session are read from the backend on every
// Get, so replicas sharing a backend see each other's writes; only
// in-progress checkouts are held in memory, in a bounded LRU.
type Registry struct {
	backend storage.Store
	log     *logger.Logger
	ids     *order.IDGenerator
	now     func() time.Time
	flows   *lru.Cache[string, *checkout.Flow]

	locks [lockStripes]sync.Mutex
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	flowCacheSize int
}

// WithFlowCacheSize sets how many in-progress checkouts are kept.
func WithFlowCacheSize(n int) Option {
	return func(o *registryOptions) { o.flowCacheSize = n }
}

// NewRegistry returns a Registry over backend. A nil now means time.Now.
func NewRegistry(backend storage.Store, log *logger.Logger, now func() time.Time, opts ...Option) *Registry {
	o := registryOptions{flowCacheSize: DefaultFlowCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	flows, err := lru.New[string, *checkout.Flow](o.flowCacheSize)
	if err != nil {
		panic(fmt.Sprintf("device: flow cache size %d: %v", o.flowCacheSize, err))
	}
	return &Registry{
		backend: backend,
		log:     log,
		ids:     order.NewIDGenerator(now),
		now:     now,
		flows:   flows,
	}
}

// NewID returns a fresh device id.
func NewID() string {
	return uuid.NewString()
}

// Get loads the device with id from the backend. Ids must be UUIDs.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid device id %q: %w", id, err)
	}
	id = parsed.String()

	log := r.log.With("device", id)
	bridge := persist.New(storage.Namespace(r.backend, "device:"+id), log)
	d := newDevice(ctx, id, bridge, log, r.ids, r.now)
	d.flows = r.flows
	log.Debug(ctx, "device loaded")
	return d, nil
}

// Acquire loads the device with id and holds it until release is called.
// Within one process, concurrent Acquire calls for the same device run one
// at a time, so a read-modify-write on its stores is not interleaved.
func (r *Registry) Acquire(ctx context.Context, id string) (d *Device, release func(), err error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid device id %q: %w", id, err)
	}
	mu := r.lock(parsed.String())
	mu.Lock()
	d, err = r.Get(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, nil, err
	}
	return d, mu.Unlock, nil
}

// InProgress reports how many checkouts are held in memory.
func (r *Registry) InProgress() int {
	return r.flows.Len()
}

func (r *Registry) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &r.locks[h.Sum32()%lockStripes]
}

// Open wires a single device directly over store, for front ends that
// serve one device such as the CLI.
func Open(ctx context.Context, store storage.Store, log *logger.Logger, now func() time.Time) *Device {
	if log == nil {
		log = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return newDevice(ctx, "local", persist.New(store, log), log, order.NewIDGenerator(now), now)
}
