package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harvestdesk/farmops-backend/internal/app"
	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

type InventoryListOptions struct {
	*RootOptions
	Location string
	Product  string
	Grade    string
}

func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect and move stock",
	}
	cmd.AddCommand(newInventoryListCommand(rootOpts), newInventoryMoveCommand(rootOpts))
	return cmd
}

func newInventoryListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InventoryListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inventory rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventoryList(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Location, "location", "", "only rows at this location id")
	cmd.Flags().StringVar(&opts.Product, "product", "", "only rows of this product")
	cmd.Flags().StringVar(&opts.Grade, "grade", "", "only rows of this grade (A, B, C)")
	return cmd
}

func runInventoryList(cmd *cobra.Command, opts *InventoryListOptions) error {
	filter := inventory.ListFilter{ProductName: strings.TrimSpace(opts.Product)}
	if opts.Location != "" {
		id, err := uuid.Parse(opts.Location)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --location", err)
		}
		filter.LocationID = &id
	}
	if opts.Grade != "" {
		grade, err := enums.ParseGrade(opts.Grade)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --grade", err)
		}
		filter.Grade = &grade
	}

	out := opts.formatter(cmd)
	return opts.withServices(cmd.Context(), func(s *app.Services) error {
		rows, err := s.Inventory.List(cmd.Context(), filter)
		if err != nil {
			return out.Error(err)
		}
		return out.Success(rows, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tPRODUCT\tGRADE\tLOCATION\tQTY")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.ProductName, r.Grade, r.LocationID, r.Quantity)
			}
		})
	})
}

func newInventoryMoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <inventory-id> <target-location-id> <amount>",
		Short: "Move units of one row to another location",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventoryMove(cmd, rootOpts, args)
		},
	}
}

func runInventoryMove(cmd *cobra.Command, opts *RootOptions, args []string) error {
	sourceID, err := uuid.Parse(args[0])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid inventory id", err)
	}
	targetID, err := uuid.Parse(args[1])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target location id", err)
	}
	amount, err := strconv.Atoi(args[2])
	if err != nil {
		return WrapExitError(ExitCommandError, "amount must be an integer", err)
	}

	out := opts.formatter(cmd)
	return opts.withServices(cmd.Context(), func(s *app.Services) error {
		result, err := s.Inventory.Move(cmd.Context(), inventory.MoveInput{
			SourceID:         sourceID,
			TargetLocationID: targetID,
			Amount:           amount,
		})
		if err != nil {
			return out.Error(err)
		}
		return out.Success(result, func(w io.Writer) {
			fmt.Fprintf(w, "source\t%s\t%d left\n", result.SourceID, result.SourceRemaining)
			fmt.Fprintf(w, "target\t%s\t%d now\n", result.TargetID, result.TargetQuantity)
		})
	})
}
