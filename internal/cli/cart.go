package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tackleshop/pkg/cart"
	"tackleshop/pkg/catalog"
	"tackleshop/pkg/money"
)

// NewCartCommand creates the cart command and its subcommands.
func NewCartCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
	}
	cmd.AddCommand(newCartShowCommand(opts))
	cmd.AddCommand(newCartAddCommand(opts))
	cmd.AddCommand(newCartUpdateCommand(opts))
	cmd.AddCommand(newCartRemoveCommand(opts))
	cmd.AddCommand(newCartClearCommand(opts))
	return cmd
}

func newCartShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				return renderCart(e.out, e.device.Cart.Snapshot())
			})
		},
	}
}

func newCartAddCommand(opts *RootOptions) *cobra.Command {
	var quantity int
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a catalog product to the cart",
		Example: `  tackle cart add 3
  tackle cart add 3 --quantity 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if quantity < 1 {
				return NewExitError(ExitFailure, "quantity must be at least 1")
			}
			return opts.run(cmd, func(e *env) error {
				p, err := e.catalog.ProductByID(e.ctx, id)
				if err != nil {
					return catalogError(err)
				}
				e.device.Cart.AddToCart(e.ctx, cart.LineItem{
					ID:       p.ID,
					Name:     p.Name,
					Price:    p.Price,
					Quantity: quantity,
					Image:    p.Image,
				})
				e.out.VerboseLog("added %d x %s", quantity, p.Name)
				return renderCart(e.out, e.device.Cart.Snapshot())
			})
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "quantity to add")
	return cmd
}

func newCartUpdateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil || quantity < 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("invalid quantity %q", args[1]))
			}
			return opts.run(cmd, func(e *env) error {
				e.device.Cart.UpdateQuantity(e.ctx, id, quantity)
				return renderCart(e.out, e.device.Cart.Snapshot())
			})
		},
	}
}

func newCartRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(e *env) error {
				e.device.Cart.RemoveFromCart(e.ctx, id)
				return renderCart(e.out, e.device.Cart.Snapshot())
			})
		},
	}
}

func newCartClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				e.device.Cart.ClearCart(e.ctx)
				return renderCart(e.out, e.device.Cart.Snapshot())
			})
		},
	}
}

type cartView struct {
	Items []cart.LineItem `json:"items"`
	Count int             `json:"count"`
	Total float64         `json:"total"`
}

func renderCart(out *OutputFormatter, snap cart.Snapshot) error {
	view := cartView{Items: snap.Items, Count: snap.Count, Total: snap.Total}
	return out.Render(view, func(w io.Writer) {
		if len(view.Items) == 0 {
			fmt.Fprintln(w, "Your cart is empty")
			return
		}
		for _, it := range view.Items {
			fmt.Fprintf(w, "#%d %s  %d x %s = %s\n", it.ID, it.Name, it.Quantity,
				money.Format(it.Price), money.Format(it.Price*float64(it.Quantity)))
		}
		fmt.Fprintf(w, "Items: %d  Total: %s\n", view.Count, money.Format(view.Total))
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, NewExitError(ExitFailure, fmt.Sprintf("invalid product id %q", s))
	}
	return id, nil
}

// catalogError maps catalog failures to exit codes.
func catalogError(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return WrapExitError(ExitFailure, "unknown product", err)
	}
	return WrapExitError(ExitCommandError, "catalog unavailable", err)
}
