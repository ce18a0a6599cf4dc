// Package cli is the recordstore command line: one subcommand per marketplace
// and book-swap operation, run against the storage backend selected by the
// RECORDSTORE_* environment.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"recordstore/internal/core"
	"recordstore/internal/store"
)

// RootOptions holds global flags and the runtime resolved before each command.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	EnvFile     string
	MetricsFile string

	Config core.Config
	Logger *logrus.Logger

	// OpenBackend overrides backend selection (for testing). Defaults to
	// core.OpenBackend.
	OpenBackend func(ctx context.Context, cfg core.Config) (store.Backend, error)

	registry *prometheus.Registry
	metrics  *core.PrometheusMetrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the recordstore CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recordstore",
		Short: "recordstore - marketplace and book-swap record store",
		Long: `Persistent record store for the NFT marketplace and the book-swap service.

Storage is selected with RECORDSTORE_STORAGE_DRIVER (memory, sqlite, postgres
or blob) and may be seeded from a .env file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file seeding RECORDSTORE_* variables")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus operation metrics to this file (textfile collector format)")

	cmd.AddCommand(NewMarketplaceCommand(opts))
	cmd.AddCommand(NewBookswapCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if err := core.LoadDotEnv(o.EnvFile); err != nil {
		return WrapExitError(ExitCommandError, "load environment", err)
	}
	o.Config = core.ConfigFromEnv()
	if o.Verbose && o.Config.Log.Level == "" {
		o.Config.Log.Level = "debug"
	}
	logger, err := core.NewLogger(o.Config.Log, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "configure logging", err)
	}
	o.Logger = logger
	if o.OpenBackend == nil {
		o.OpenBackend = core.OpenBackend
	}
	o.registry, o.metrics = nil, nil
	if o.MetricsFile != "" {
		reg := prometheus.NewRegistry()
		metrics, err := core.NewPrometheusMetrics(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "register metrics", err)
		}
		o.registry, o.metrics = reg, metrics
	}
	return nil
}

func (o *RootOptions) serviceOptions(app string) []core.ServiceOption {
	opts := []core.ServiceOption{core.WithLogger(o.Logger)}
	if o.metrics != nil {
		opts = append(opts, core.WithMetrics(o.metrics.Recorder(app)))
	}
	return opts
}

// flushMetrics writes the gathered metrics for a node_exporter textfile
// collector. The operation has already run, so a write failure is only logged.
func (o *RootOptions) flushMetrics() {
	if o.registry == nil {
		return
	}
	if err := prometheus.WriteToTextfile(o.MetricsFile, o.registry); err != nil {
		o.Logger.WithError(err).WithField("path", o.MetricsFile).Warn("write metrics file")
	}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
