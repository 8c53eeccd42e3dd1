package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tag-UCSD/image-tagger/internal/app"
	"github.com/Tag-UCSD/image-tagger/internal/config"
	"github.com/Tag-UCSD/image-tagger/pkg/logger"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
)

type rootOptions struct {
	dbPath      string
	catalogPath string
	format      string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "tagctl",
		Short: "Operate the image tagging core",
		Long: "tagctl validates the attribute catalog, exports BN snapshots and codebooks,\n" +
			"and inspects single images against the configured feature store.",
		Version:      version,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.format != formatTable && opts.format != formatJSON {
				return fmt.Errorf("unknown output format %q (want %s or %s)", opts.format, formatTable, formatJSON)
			}
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.dbPath, "db", "", "SQLite database path; selects the sqlite store")
	f.StringVar(&opts.catalogPath, "catalog", "", "YAML file of extra catalog entries")
	f.StringVarP(&opts.format, "output", "o", formatTable, "Output format: table or json")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	cmd.AddCommand(
		newCatalogCmd(opts),
		newExportCmd(opts),
		newCodebookCmd(opts),
		newInspectCmd(opts),
		newIRRCmd(opts),
		newSeedCmd(opts),
	)
	return cmd
}

// config loads the service configuration and applies the flag overrides.
func (o *rootOptions) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.StoreDriver = config.DriverSQLite
		cfg.SQLitePath = o.dbPath
	}
	if o.catalogPath != "" {
		cfg.CatalogPath = o.catalogPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Logs go to stderr so that stdout stays machine readable.
	if err := logger.InitWith(cmd.ErrOrStderr(), cfg.LogFormat); err != nil {
		return nil, err
	}
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withService runs fn against a started service and stops it afterwards.
func (o *rootOptions) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error, opts ...app.Option) error {
	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc := app.New(cfg, opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop(ctx)
	return fn(ctx, svc)
}

func (o *rootOptions) json() bool { return o.format == formatJSON }
