// Package order defines placed orders and their identifiers.
package order

import (
	"slices"
	"strconv"
	"sync"
	"time"
)

// Status is the fulfillment state of an order.
type Status string

// Known statuses.
const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// DateLayout renders order dates the way the storefront displays them.
const DateLayout = "1/2/2006"

// Item is a purchased line captured at checkout.
type Item struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order represents a customer purchase order. Orders are immutable once
// placed.
type Order struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Total  float64 `json:"total"`
	Items  []Item  `json:"items"`
	Status Status  `json:"status"`
}

// Clone returns a copy of o that shares no memory with it.
func (o Order) Clone() Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// IDPrefix starts every generated order id.
const IDPrefix = "#ORD-"

// IDGenerator hands out time-derived order ids. Ids are the wall clock in
// Unix milliseconds, bumped past the previous id when the clock has not
// moved, so no two calls on one generator return the same id.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDGenerator returns a generator reading time from now; nil means
// time.Now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a new order id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return IDPrefix + strconv.FormatInt(ms, 10)
}
