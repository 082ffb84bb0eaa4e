package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harvestdesk/farmops-backend/internal/app"
)

// ServicesFunc opens the row store and wires the domain services. The
// returned closer releases the store.
type ServicesFunc func(ctx context.Context) (*app.Services, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	// TimeZone is the business time zone for order ids, from configuration.
	TimeZone string

	open ServicesFunc
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the farmctl root command.
func NewRootCommand(open ServicesFunc, timeZone string) *cobra.Command {
	opts := &RootOptions{open: open, TimeZone: timeZone}

	cmd := &cobra.Command{
		Use:   "farmctl",
		Short: "farmctl - FarmOps operator tool",
		Long:  "Operator commands for the FarmOps row store: segmentation runs, order ids and stock moves.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSegmentsCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewOutboxCommand(opts))

	return cmd
}

// withServices runs fn against freshly wired services and closes the store
// afterwards.
func (o *RootOptions) withServices(ctx context.Context, fn func(*app.Services) error) error {
	if o.open == nil {
		return NewExitError(ExitCommandError, "no row store available")
	}
	services, closeFn, err := o.open(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "open row store", err)
	}
	defer func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}()
	return fn(services)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
