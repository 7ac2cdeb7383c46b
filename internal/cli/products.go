package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"tackleshop/pkg/catalog"
	"tackleshop/pkg/money"
)

// NewProductsCommand creates the products command and its subcommands.
func NewProductsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
	}
	cmd.AddCommand(newProductsListCommand(opts))
	cmd.AddCommand(newProductsShowCommand(opts))
	cmd.AddCommand(newProductsSearchCommand(opts))
	return cmd
}

func newProductsListCommand(opts *RootOptions) *cobra.Command {
	var category, typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally by category or type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if category != "" {
				if _, ok := catalog.CategoryBySlug(category); !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("unknown category %q", category))
				}
			}
			return opts.run(cmd, func(e *env) error {
				list, err := e.catalog.Search(e.ctx, catalog.Query{Category: category, Type: typ})
				if err != nil {
					return catalogError(err)
				}
				return renderProducts(e.out, list)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category slug")
	cmd.Flags().StringVar(&typ, "type", "", "product type")
	return cmd
}

func newProductsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(e *env) error {
				p, err := e.catalog.ProductByID(e.ctx, id)
				if err != nil {
					return catalogError(err)
				}
				fav := e.device.Session.IsFavorite(p.ID)
				return e.out.Render(p, func(w io.Writer) {
					writeProduct(w, p, fav)
				})
			})
		},
	}
}

func newProductsSearchCommand(opts *RootOptions) *cobra.Command {
	var (
		category, typ, sort string
		minPrice, maxPrice  float64
	)
	cmd := &cobra.Command{
		Use:     "search [text]",
		Short:   "Search the catalog",
		Example: `  tackle products search reel --max 250 --sort price-low`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := catalog.ParseSort(sort)
			if err != nil {
				return WrapExitError(ExitFailure, "search", err)
			}
			q := catalog.Query{Category: category, Type: typ, MinPrice: minPrice, MaxPrice: maxPrice, Sort: order}
			if len(args) == 1 {
				q.Text = args[0]
			}
			return opts.run(cmd, func(e *env) error {
				list, err := e.catalog.Search(e.ctx, q)
				if err != nil {
					return catalogError(err)
				}
				return renderProducts(e.out, list)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category slug")
	cmd.Flags().StringVar(&typ, "type", "", "product type")
	cmd.Flags().Float64Var(&minPrice, "min", 0, "minimum price")
	cmd.Flags().Float64Var(&maxPrice, "max", 0, "maximum price (0 = no limit)")
	cmd.Flags().StringVar(&sort, "sort", string(catalog.SortRelevance), "relevance|price-low|price-high|rating|newest")
	return cmd
}

func renderProducts(out *OutputFormatter, list []catalog.Product) error {
	return out.Render(list, func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No products found")
			return
		}
		for _, p := range list {
			fmt.Fprintf(w, "#%d %s  %s  %.1f (%d)\n", p.ID, p.Name, money.Format(p.Price), p.Rating, p.Reviews)
		}
	})
}

func writeProduct(w io.Writer, p catalog.Product, favorite bool) {
	fmt.Fprintf(w, "#%d %s\n", p.ID, p.Name)
	fmt.Fprintf(w, "Price: %s\n", money.Format(p.Price))
	fmt.Fprintf(w, "Category: %s", p.Category)
	if p.Type != "" {
		fmt.Fprintf(w, " / %s", p.Type)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rating: %.1f (%d reviews)\n", p.Rating, p.Reviews)
	if p.Badge != "" {
		fmt.Fprintf(w, "Badge: %s\n", p.Badge)
	}
	if favorite {
		fmt.Fprintln(w, "Favorite: yes")
	}
	fmt.Fprintln(w, p.Description)
	keys := make([]string, 0, len(p.Specs))
	for k := range p.Specs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", strings.ToLower(k), p.Specs[k])
	}
}
