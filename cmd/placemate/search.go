package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find items by name, category or description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withApp(func(a *app) error {
				hits, err := a.inventory.Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(hits))
				for _, h := range hits {
					rows = append(rows, []string{h.Item.Name, h.Item.Category, h.Path})
				}
				return ctx.printResult(cmd, hits, []string{"Item", "Category", "Location"}, rows)
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every location, item and borrow record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the catalog without --yes")
			}
			return ctx.withApp(func(a *app) error {
				if err := a.inventory.ClearAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "catalog cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting the whole catalog")
	return cmd
}
