package cli

import (
	"github.com/spf13/cobra"

	"recordstore/internal/bookswap"
	"recordstore/internal/marketplace"
	"recordstore/internal/store"
)

// sharedBackend lets several engines use one backend that is closed once by
// the caller.
type sharedBackend struct{ store.Backend }

func (sharedBackend) Close() error { return nil }

// NewExportCommand dumps the committed state of both applications.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print a snapshot of every record and id counter",
		Long: `Print a snapshot of every record and id counter held by the configured
storage, for backups or for seeding another driver.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := opts.OpenBackend(ctx, opts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "open storage", err)
			}
			defer backend.Close()

			market, err := marketplace.Open(ctx, sharedBackend{backend}, opts.serviceOptions(marketplace.Namespace)...)
			if err != nil {
				return WrapExitError(ExitCommandError, "open marketplace", err)
			}
			books, err := bookswap.Open(ctx, sharedBackend{backend}, opts.serviceOptions(bookswap.Namespace)...)
			if err != nil {
				return WrapExitError(ExitCommandError, "open bookswap", err)
			}

			snapshot := store.NewSnapshot()
			for _, engine := range []*store.Engine{market.Engine(), books.Engine()} {
				part, err := engine.Export()
				if err != nil {
					return WrapExitError(ExitCommandError, "export", err)
				}
				for ns, counter := range part.Counters {
					snapshot.Counters[ns] = counter
				}
				for bucket, rows := range part.Records {
					snapshot.Records[bucket] = rows
				}
			}
			return opts.formatter(cmd).Success(snapshot)
		},
	}
}
