package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harvestdesk/farmops-backend/internal/app"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

type OutboxOptions struct {
	*RootOptions
	EventType string
	Limit     int
}

func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OutboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and requeue domain events the relay could not publish",
	}

	stuck := &cobra.Command{
		Use:   "stuck",
		Short: "List unpublished events that failed at least once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listStuck(cmd, opts)
		},
	}
	stuck.Flags().StringVar(&opts.EventType, "type", "", "only this event type, e.g. inventory.moved")
	stuck.Flags().IntVar(&opts.Limit, "limit", 50, "maximum rows to show")

	requeue := &cobra.Command{
		Use:   "requeue <event-id>...",
		Short: "Reset attempts so the relay publishes the events again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return requeueEvents(cmd, opts, args)
		},
	}

	cmd.AddCommand(stuck, requeue)
	return cmd
}

func listStuck(cmd *cobra.Command, opts *OutboxOptions) error {
	var eventType *enums.OutboxEventType
	if strings.TrimSpace(opts.EventType) != "" {
		parsed, err := enums.ParseOutboxEventType(opts.EventType)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --type", err)
		}
		eventType = &parsed
	}
	if opts.Limit < 1 {
		return NewExitError(ExitCommandError, "--limit must be positive")
	}

	out := opts.formatter(cmd)
	return opts.withServices(cmd.Context(), func(s *app.Services) error {
		rows, err := s.Outbox.ListStuck(cmd.Context(), eventType, opts.Limit)
		if err != nil {
			return out.Error(err)
		}
		return out.Success(rows, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tTYPE\tAGGREGATE\tATTEMPTS\tCREATED\tLAST ERROR")
			for _, row := range rows {
				lastErr := ""
				if row.LastError != nil {
					lastErr = *row.LastError
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					row.ID, row.EventType, row.AggregateID, row.AttemptCount, row.CreatedAt.Format("2006-01-02 15:04"), lastErr)
			}
		})
	})
}

func requeueEvents(cmd *cobra.Command, opts *OutboxOptions, args []string) error {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(strings.TrimSpace(arg))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid event id", err)
		}
		ids = append(ids, id)
	}

	out := opts.formatter(cmd)
	return opts.withServices(cmd.Context(), func(s *app.Services) error {
		for _, id := range ids {
			if err := s.Outbox.Requeue(cmd.Context(), id); err != nil {
				return out.Error(err)
			}
			out.Debug("requeued %s", id)
		}
		return out.Success(map[string]int{"requeued": len(ids)}, func(w io.Writer) {
			fmt.Fprintf(w, "requeued\t%d\n", len(ids))
		})
	})
}
