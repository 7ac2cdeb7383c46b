// Package checkout turns the cart into a placed order.
//
// A Flow walks shipping, payment and confirmation. Shipping details are
// merged into the session profile, payment details are only checked for
// presence and never stored, and a confirmed order is prepended to the
// order history before the cart is cleared.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tackleshop/pkg/cart"
	"tackleshop/pkg/money"
	"tackleshop/pkg/order"
	"tackleshop/pkg/session"
)

// Pricing rules.
const (
	FreeShippingOver = 100.0
	FlatShipping     = 10.0
	TaxRate          = 0.08
)

// Step is a stage of the checkout flow.
type Step string

// Steps in order.
const (
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

var (
	// ErrEmptyCart is returned when checking out with nothing in the cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrWrongStep is returned when a form is submitted out of order.
	ErrWrongStep = errors.New("checkout step not available")
)

// ValidationError lists the required fields missing from a submitted form.
type ValidationError struct {
	Step   Step
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Step, strings.Join(e.Fields, ", "))
}

// Quote is the price breakdown of a cart.
type Quote struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// QuoteFor prices a subtotal: shipping is free strictly above
// FreeShippingOver, tax is TaxRate of the subtotal.
func QuoteFor(subtotal float64) Quote {
	q := Quote{Subtotal: subtotal, Shipping: FlatShipping, Tax: subtotal * TaxRate}
	if subtotal > FreeShippingOver {
		q.Shipping = 0
	}
	q.Total = subtotal + q.Shipping + q.Tax
	return q
}

// ShippingForm is the shipping step input.
type ShippingForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

func (f ShippingForm) missing() []string {
	var out []string
	if f.FirstName == "" {
		out = append(out, "firstName")
	}
	if f.Email == "" {
		out = append(out, "email")
	}
	if f.Address == "" {
		out = append(out, "address")
	}
	return out
}

func (f ShippingForm) patch() session.ProfilePatch {
	name := strings.TrimSpace(f.FirstName + " " + f.LastName)
	return session.ProfilePatch{
		Name:    &name,
		Email:   &f.Email,
		Phone:   &f.Phone,
		Address: &f.Address,
		City:    &f.City,
		State:   &f.State,
		ZipCode: &f.Zip,
	}
}

// PaymentForm is the payment step input.
type PaymentForm struct {
	CardNumber string `json:"cardNumber"`
	Expiry     string `json:"expiry"`
	CVC        string `json:"cvc"`
}

func (f PaymentForm) missing() []string {
	var out []string
	if f.CardNumber == "" {
		out = append(out, "cardNumber")
	}
	if f.Expiry == "" {
		out = append(out, "expiry")
	}
	if f.CVC == "" {
		out = append(out, "cvc")
	}
	return out
}

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Items() []cart.LineItem
	Total() float64
	ClearCart(ctx context.Context)
}

// Session is the part of the session store checkout needs.
type Session interface {
	UpdateProfile(ctx context.Context, patch session.ProfilePatch)
	AddOrder(ctx context.Context, o order.Order)
}

// Flow is one checkout in progress.
type Flow struct {
	cart    Cart
	session Session
	ids     *order.IDGenerator
	now     func() time.Time

	mu    sync.Mutex
	step  Step
	order *order.Order
}

// NewFlow starts a checkout at the shipping step. A nil now means time.Now.
func NewFlow(c Cart, s Session, ids *order.IDGenerator, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	return &Flow{cart: c, session: s, ids: ids, now: now, step: StepShipping}
}

// Bind points the flow at c and s. Front ends that reload a device's
// stores per request use it to resume a checkout on the fresh stores.
func (f *Flow) Bind(c Cart, s Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cart, f.session = c, s
}

// Step returns the current step.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Quote prices the current cart.
func (f *Flow) Quote() Quote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return QuoteFor(f.cart.Total())
}

// Order returns the placed order once the flow is confirmed.
func (f *Flow) Order() (order.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil {
		return order.Order{}, false
	}
	return *f.order, true
}

// SubmitShipping validates the shipping details, merges them into the
// profile and moves to the payment step. It may be repeated from the
// payment step to correct the address.
func (f *Flow) SubmitShipping(ctx context.Context, form ShippingForm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step == StepConfirmation {
		return ErrWrongStep
	}
	if len(f.cart.Items()) == 0 {
		return ErrEmptyCart
	}
	if missing := form.missing(); len(missing) > 0 {
		return &ValidationError{Step: StepShipping, Fields: missing}
	}
	f.session.UpdateProfile(ctx, form.patch())
	f.step = StepPayment
	return nil
}

// SubmitPayment validates the payment details, places the order, clears
// the cart and confirms the flow.
func (f *Flow) SubmitPayment(ctx context.Context, form PaymentForm) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepPayment {
		return order.Order{}, ErrWrongStep
	}
	if missing := form.missing(); len(missing) > 0 {
		return order.Order{}, &ValidationError{Step: StepPayment, Fields: missing}
	}
	lines := f.cart.Items()
	if len(lines) == 0 {
		return order.Order{}, ErrEmptyCart
	}

	items := make([]order.Item, 0, len(lines))
	var subtotal float64
	for _, l := range lines {
		items = append(items, order.Item{Name: l.Name, Quantity: l.Quantity, Price: l.Price})
		subtotal += l.Price * float64(l.Quantity)
	}
	o := order.Order{
		ID:     f.ids.Next(),
		Date:   f.now().Format(order.DateLayout),
		Total:  money.Round(QuoteFor(subtotal).Total),
		Items:  items,
		Status: order.StatusPending,
	}

	f.session.AddOrder(ctx, o)
	f.cart.ClearCart(ctx)
	f.order = &o
	f.step = StepConfirmation
	return o, nil
}
