package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"tackleshop/pkg/catalog"
	"tackleshop/pkg/config"
	"tackleshop/pkg/device"
	"tackleshop/pkg/logger"
	"tackleshop/pkg/storage/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	DB      string

	// now and source are overridden in tests.
	now    func() time.Time
	source catalog.Source
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the tackle CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tackle",
		Short: "tackle - tackleshop from the terminal",
		Long:  "Browse the tackleshop catalog and manage this device's cart, session, favorites and orders.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", defaultDB(), "sqlite database holding this device's state")

	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewFavoriteCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))

	return cmd
}

func defaultDB() string {
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		return v
	}
	return "tackleshop.db"
}

// env is what a command runs against: the local device, the catalog and
// an output formatter.
type env struct {
	ctx     context.Context
	device  *device.Device
	catalog *catalog.Accessor
	out     *OutputFormatter
	log     *logger.Logger
	close   func() error
}

// open opens the local device database. Callers must call close.
func (o *RootOptions) open(cmd *cobra.Command) (*env, error) {
	level := logger.LevelWarn
	if o.Verbose {
		level = logger.LevelDebug
	}
	log := logger.New(cmd.ErrOrStderr(), level, "tackle", nil)

	store, err := sqlite.Open(o.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log.Debug(ctx, "database opened", "path", o.DB)

	return &env{
		ctx:     ctx,
		device:  device.Open(ctx, store, log, o.now),
		catalog: catalog.New(o.catalogSource()),
		out:     &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: o.Verbose},
		log:     log,
		close: func() error {
			log.Sync()
			return store.Close()
		},
	}, nil
}

func (o *RootOptions) catalogSource() catalog.Source {
	if o.source != nil {
		return o.source
	}
	if url := config.FromEnv().CatalogURL; url != "" {
		return catalog.HTTPSource{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
	}
	return catalog.EmbeddedSource{}
}

// run opens the environment, runs fn and closes it.
func (o *RootOptions) run(cmd *cobra.Command, fn func(e *env) error) error {
	e, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	return fn(e)
}
