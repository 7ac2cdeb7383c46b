package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tackleshop/pkg/money"
	"tackleshop/pkg/order"
	"tackleshop/pkg/session"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Sign in on this device",
		Example: `  tackle login --email jane@example.com --password secret`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				if err := e.device.Session.Login(e.ctx, email, password); err != nil {
					if errors.Is(err, session.ErrEmptyCredentials) {
						return WrapExitError(ExitFailure, "login", err)
					}
					return err
				}
				return renderSession(e.out, e.device.Session)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; orders and favorites stay on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				e.device.Session.Logout(e.ctx)
				return renderSession(e.out, e.device.Session)
			})
		},
	}
}

// NewProfileCommand creates the profile command and its subcommands.
func NewProfileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the signed-in profile",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				return renderSession(e.out, e.device.Session)
			})
		},
	})
	cmd.AddCommand(newProfileSetCommand(opts))
	return cmd
}

// profileFields maps flag names to profile patch fields.
var profileFields = []struct {
	flag  string
	usage string
	field func(p *session.ProfilePatch) **string
}{
	{"name", "display name", func(p *session.ProfilePatch) **string { return &p.Name }},
	{"email", "email", func(p *session.ProfilePatch) **string { return &p.Email }},
	{"phone", "phone number", func(p *session.ProfilePatch) **string { return &p.Phone }},
	{"address", "street address", func(p *session.ProfilePatch) **string { return &p.Address }},
	{"city", "city", func(p *session.ProfilePatch) **string { return &p.City }},
	{"state", "state", func(p *session.ProfilePatch) **string { return &p.State }},
	{"zip", "zip code", func(p *session.ProfilePatch) **string { return &p.ZipCode }},
}

func newProfileSetCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "set",
		Short:   "Change profile fields; only the given flags are updated",
		Example: `  tackle profile set --city Tampa --zip 33601`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch session.ProfilePatch
			for _, f := range profileFields {
				if !cmd.Flags().Changed(f.flag) {
					continue
				}
				v, err := cmd.Flags().GetString(f.flag)
				if err != nil {
					return err
				}
				*f.field(&patch) = &v
			}
			return opts.run(cmd, func(e *env) error {
				if !e.device.Session.IsLoggedIn() {
					return NewExitError(ExitFailure, "not logged in")
				}
				e.device.Session.UpdateProfile(e.ctx, patch)
				return renderSession(e.out, e.device.Session)
			})
		},
	}
	for _, f := range profileFields {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	return cmd
}

type sessionView struct {
	IsLoggedIn bool             `json:"isLoggedIn"`
	Profile    *session.Profile `json:"profile"`
}

func renderSession(out *OutputFormatter, s *session.Store) error {
	var view sessionView
	if p, ok := s.Profile(); ok {
		view = sessionView{IsLoggedIn: true, Profile: &p}
	}
	return out.Render(view, func(w io.Writer) {
		if !view.IsLoggedIn {
			fmt.Fprintln(w, "Not logged in")
			return
		}
		p := view.Profile
		fmt.Fprintf(w, "Logged in as %s <%s>\n", p.Name, p.Email)
		for _, line := range []struct{ label, value string }{
			{"Phone", p.Phone},
			{"Address", p.Address},
			{"City", p.City},
			{"State", p.State},
			{"Zip", p.ZipCode},
		} {
			if line.value != "" {
				fmt.Fprintf(w, "%s: %s\n", line.label, line.value)
			}
		}
	})
}

// NewOrdersCommand creates the orders command.
func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List orders placed on this device, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				orders := e.device.Session.Orders()
				return e.out.Render(orders, func(w io.Writer) {
					if len(orders) == 0 {
						fmt.Fprintln(w, "No orders yet")
						return
					}
					for _, o := range orders {
						writeOrder(w, o)
					}
				})
			})
		},
	}
}

func writeOrder(w io.Writer, o order.Order) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n", o.ID, o.Date, o.Status, money.Format(o.Total))
	for _, it := range o.Items {
		fmt.Fprintf(w, "  %d x %s  %s\n", it.Quantity, it.Name, money.Format(it.Price))
	}
}

// NewFavoriteCommand creates the favorite command and its subcommands.
func NewFavoriteCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorite",
		Short: "Manage favorite products",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <product-id>",
		Short: "Add or remove a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(e *env) error {
				fav := e.device.Session.ToggleFavorite(e.ctx, id)
				view := struct {
					ID       int64 `json:"id"`
					Favorite bool  `json:"favorite"`
				}{id, fav}
				return e.out.Render(view, func(w io.Writer) {
					if fav {
						fmt.Fprintf(w, "Added #%d to favorites\n", id)
					} else {
						fmt.Fprintf(w, "Removed #%d from favorites\n", id)
					}
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorites with their catalog details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(e *env) error {
				ids := e.device.Session.Favorites()
				return e.out.Render(ids, func(w io.Writer) {
					if len(ids) == 0 {
						fmt.Fprintln(w, "No favorites")
						return
					}
					for _, id := range ids {
						p, err := e.catalog.ProductByID(e.ctx, id)
						if err != nil {
							fmt.Fprintf(w, "#%d\n", id)
							continue
						}
						fmt.Fprintf(w, "#%d %s  %s\n", p.ID, p.Name, money.Format(p.Price))
					}
				})
			})
		},
	})
	return cmd
}

func splitName(name string) (first, last string) {
	first, last, _ = strings.Cut(strings.TrimSpace(name), " ")
	return first, last
}
