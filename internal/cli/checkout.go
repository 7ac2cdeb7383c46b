package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tackleshop/pkg/checkout"
	"tackleshop/pkg/money"
)

// CheckoutOptions holds flags for the checkout command.
type CheckoutOptions struct {
	*RootOptions
	Shipping checkout.ShippingForm
	Payment  checkout.PaymentForm
	Quote    bool
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Long: `Place an order for everything in the cart.

Shipping details left out on the command line are taken from the signed-in
profile. The order is added to the order history and the cart is emptied.

Example:
  tackle checkout --first-name Jane --address "1 Pier Rd" --card 4242424242424242 --expiry 12/30 --cvc 123
  tackle checkout --quote`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				return runCheckout(opts, e)
			})
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Quote, "quote", false, "only print the price breakdown")
	f.StringVar(&opts.Shipping.FirstName, "first-name", "", "first name")
	f.StringVar(&opts.Shipping.LastName, "last-name", "", "last name")
	f.StringVar(&opts.Shipping.Email, "email", "", "email")
	f.StringVar(&opts.Shipping.Phone, "phone", "", "phone number")
	f.StringVar(&opts.Shipping.Address, "address", "", "street address")
	f.StringVar(&opts.Shipping.City, "city", "", "city")
	f.StringVar(&opts.Shipping.State, "state", "", "state")
	f.StringVar(&opts.Shipping.Zip, "zip", "", "zip code")
	f.StringVar(&opts.Payment.CardNumber, "card", "", "card number")
	f.StringVar(&opts.Payment.Expiry, "expiry", "", "card expiry (MM/YY)")
	f.StringVar(&opts.Payment.CVC, "cvc", "", "card security code")

	return cmd
}

func runCheckout(opts *CheckoutOptions, e *env) error {
	flow := e.device.Checkout()
	if opts.Quote {
		q := flow.Quote()
		return e.out.Render(q, func(w io.Writer) { writeQuote(w, q) })
	}

	form := withProfileDefaults(opts.Shipping, e)
	if err := flow.SubmitShipping(e.ctx, form); err != nil {
		return checkoutError(err)
	}
	q := flow.Quote()
	e.out.VerboseLog("shipping accepted, total %s", money.Format(q.Total))

	o, err := flow.SubmitPayment(e.ctx, opts.Payment)
	if err != nil {
		return checkoutError(err)
	}
	e.log.Info(e.ctx, "order placed", "order", o.ID, "total", o.Total)

	return e.out.Render(o, func(w io.Writer) {
		fmt.Fprintln(w, "Order placed")
		writeOrder(w, o)
		writeQuote(w, q)
	})
}

// withProfileDefaults fills empty shipping fields from the signed-in profile.
func withProfileDefaults(form checkout.ShippingForm, e *env) checkout.ShippingForm {
	p, ok := e.device.Session.Profile()
	if !ok {
		return form
	}
	first, last := splitName(p.Name)
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&form.FirstName, first)
	fill(&form.LastName, last)
	fill(&form.Email, p.Email)
	fill(&form.Phone, p.Phone)
	fill(&form.Address, p.Address)
	fill(&form.City, p.City)
	fill(&form.State, p.State)
	fill(&form.Zip, p.ZipCode)
	return form
}

func writeQuote(w io.Writer, q checkout.Quote) {
	shipping := money.Format(q.Shipping)
	if q.Shipping == 0 {
		shipping = "FREE"
	}
	fmt.Fprintf(w, "Subtotal: %s\n", money.Format(q.Subtotal))
	fmt.Fprintf(w, "Shipping: %s\n", shipping)
	fmt.Fprintf(w, "Tax: %s\n", money.Format(q.Tax))
	fmt.Fprintf(w, "Total: %s\n", money.Format(q.Total))
}

func checkoutError(err error) error {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) || errors.Is(err, checkout.ErrEmptyCart) || errors.Is(err, checkout.ErrWrongStep) {
		return WrapExitError(ExitFailure, "checkout", err)
	}
	return err
}
