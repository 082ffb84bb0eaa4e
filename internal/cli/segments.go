package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harvestdesk/farmops-backend/internal/app"
	"github.com/harvestdesk/farmops-backend/internal/customers"
)

type SegmentsOptions struct {
	*RootOptions
	Top     int
	Changed bool
}

func NewSegmentsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SegmentsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Preview and apply RFM customer segments",
	}

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Score every customer without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return previewSegments(cmd, opts)
		},
	}
	preview.Flags().IntVar(&opts.Top, "top", 0, "only show the N highest scoring customers")

	apply := &cobra.Command{
		Use:   "apply [customer-id=Segment ...]",
		Short: "Write segments for the given customers, or every changed one with --changed",
		Long: `Write segments for customers.

Pass explicit assignments as id=Segment pairs, or --changed to apply the
computed segment to every customer whose stored segment differs.

Example:
  farmctl segments apply 6f0c...=VIP 91ab...="At Risk"
  farmctl segments apply --changed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return applySegments(cmd, opts, args)
		},
	}
	apply.Flags().BoolVar(&opts.Changed, "changed", false, "apply every computed segment that differs from the stored one")

	cmd.AddCommand(preview, apply)
	return cmd
}

func previewSegments(cmd *cobra.Command, opts *SegmentsOptions) error {
	out := opts.formatter(cmd)
	return opts.withServices(cmd.Context(), func(s *app.Services) error {
		var (
			scores []customers.Score
			err    error
		)
		if opts.Top > 0 {
			scores, err = s.Customers.TopCandidates(cmd.Context(), opts.Top)
		} else {
			scores, err = s.Customers.Calculate(cmd.Context())
		}
		if err != nil {
			return out.Error(err)
		}
		return out.Success(scores, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tNAME\tFREQ\tMONETARY\tRECENCY\tSCORE\tSEGMENT\tCURRENT")
			for _, sc := range scores {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%.3f\t%s\t%s\n",
					sc.ID, sc.Name, sc.RFM.Frequency, sc.RFM.Monetary.StringFixed(2), sc.RFM.RecencyDays, sc.Score, sc.Segment, sc.CurrentSegment)
			}
		})
	})
}

func applySegments(cmd *cobra.Command, opts *SegmentsOptions, args []string) error {
	out := opts.formatter(cmd)
	if opts.Changed && len(args) > 0 {
		return NewExitError(ExitCommandError, "pass either --changed or explicit assignments, not both")
	}
	if !opts.Changed && len(args) == 0 {
		return NewExitError(ExitCommandError, "nothing to apply: pass id=Segment pairs or --changed")
	}

	updates, err := parseAssignments(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid assignment", err)
	}

	return opts.withServices(cmd.Context(), func(s *app.Services) error {
		if opts.Changed {
			scores, err := s.Customers.Calculate(cmd.Context())
			if err != nil {
				return out.Error(err)
			}
			for _, sc := range scores {
				if sc.Segment != sc.CurrentSegment {
					updates = append(updates, customers.SegmentUpdate{ID: sc.ID, Segment: sc.Segment.String()})
				}
			}
			out.Debug("%d of %d customers changed segment", len(updates), len(scores))
		}
		if len(updates) == 0 {
			return out.Success(&customers.ApplyResult{Failed: []customers.ApplyFailure{}}, func(w io.Writer) {
				fmt.Fprintln(w, "no segment changes")
			})
		}

		result, err := s.Customers.Apply(cmd.Context(), updates)
		if err != nil {
			return out.Error(err)
		}
		if err := out.Success(result, func(w io.Writer) {
			fmt.Fprintf(w, "applied\t%d\n", result.Applied)
			for _, f := range result.Failed {
				fmt.Fprintf(w, "failed\t%s\t%s\n", f.ID, f.Error)
			}
		}); err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return WrapExitError(ExitFailure, "some segments were not applied", result.Err())
		}
		return nil
	})
}

func parseAssignments(args []string) ([]customers.SegmentUpdate, error) {
	updates := make([]customers.SegmentUpdate, 0, len(args))
	for _, arg := range args {
		rawID, segment, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(segment) == "" {
			return nil, fmt.Errorf("%q is not id=Segment", arg)
		}
		id, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", rawID, err)
		}
		updates = append(updates, customers.SegmentUpdate{ID: id, Segment: strings.TrimSpace(segment)})
	}
	return updates, nil
}
