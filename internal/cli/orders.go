package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvestdesk/farmops-backend/internal/orders"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

type NewIDOptions struct {
	*RootOptions
	Channel string
	Count   int
}

func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Order utilities",
	}
	cmd.AddCommand(newOrderIDCommand(rootOpts))
	return cmd
}

func newOrderIDCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NewIDOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "new-id",
		Short: "Generate order ids in the business time zone",
		Long: `Generate order ids of the form PREFIX-XXXX-YYYYMMDD.

The prefix is the upper-cased channel, or ORD without one. The date is
today's date in the business time zone (--tz).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNewID(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "sales channel (Direct, Line, Phone, Wholesale)")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of ids to generate")
	return cmd
}

func runNewID(cmd *cobra.Command, opts *NewIDOptions) error {
	if opts.Count < 1 || opts.Count > 1000 {
		return NewExitError(ExitCommandError, "--count must be between 1 and 1000")
	}
	var channel *enums.Channel
	if strings.TrimSpace(opts.Channel) != "" {
		parsed, err := enums.ParseChannel(opts.Channel)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --channel", err)
		}
		channel = &parsed
	}

	gen := orders.NewIDGenerator(opts.TimeZone)
	ids := make([]string, opts.Count)
	for i := range ids {
		ids[i] = gen.New(channel)
	}
	opts.formatter(cmd).Debug("business date %s in %s", gen.Today(), gen.Location())

	return opts.formatter(cmd).Success(ids, func(w io.Writer) {
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
	})
}
