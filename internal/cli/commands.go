package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"recordstore/internal/core"
	"recordstore/internal/store"
)

// opener builds an application service over a backend, like marketplace.Open.
type opener[S io.Closer] = func(ctx context.Context, backend store.Backend, opts ...core.ServiceOption) (S, error)

// withService opens the configured backend and the service over it, runs op
// and reports its outcome.
func withService[S io.Closer, R any](opts *RootOptions, cmd *cobra.Command, open opener[S], op func(ctx context.Context, svc S) (R, error)) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)
	backend, err := opts.OpenBackend(ctx, opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "open storage", err)
	}
	out.VerboseLog("storage: %s", opts.Config.Storage)
	// Command groups are named after their application namespace.
	svc, err := open(ctx, backend, opts.serviceOptions(cmd.Parent().Name())...)
	if err != nil {
		_ = backend.Close()
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer svc.Close()
	result, err := op(ctx, svc)
	opts.flushMetrics()
	return out.Report(result, err)
}

func decodePayload[P any](raw string) (P, error) {
	var p P
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, WrapExitError(ExitCommandError, "invalid --json payload", err)
	}
	return p, nil
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid id %q", raw), err)
	}
	return id, nil
}

func payloadCommand[S io.Closer, P, R any](opts *RootOptions, use, short, example string, open opener[S], call func(S, context.Context, P) (R, error)) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Example:       example,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decodePayload[P](raw)
			if err != nil {
				return err
			}
			return withService(opts, cmd, open, func(ctx context.Context, svc S) (R, error) {
				return call(svc, ctx, p)
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "operation payload as JSON")
	_ = cmd.MarkFlagRequired("json")
	return cmd
}

func idCommand[S io.Closer, R any](opts *RootOptions, use, short string, open opener[S], call func(S, context.Context, uint64) (R, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(opts, cmd, open, func(ctx context.Context, svc S) (R, error) {
				return call(svc, ctx, id)
			})
		},
	}
}

func listCommand[S io.Closer, R any](opts *RootOptions, use, short string, open opener[S], call func(S, context.Context) (R, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(opts, cmd, open, func(ctx context.Context, svc S) (R, error) {
				return call(svc, ctx)
			})
		},
	}
}

func textFlagCommand[S io.Closer, R any](opts *RootOptions, use, short, flag string, open opener[S], call func(S, context.Context, string) (R, error)) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(opts, cmd, open, func(ctx context.Context, svc S) (R, error) {
				return call(svc, ctx, value)
			})
		},
	}
	cmd.Flags().StringVar(&value, flag, "", "value to match exactly")
	_ = cmd.MarkFlagRequired(flag)
	return cmd
}
