package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/service"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage catalog items",
	}
	cmd.AddCommand(
		newItemsListCommand(ctx),
		newItemsAddCommand(ctx),
		newItemsShowCommand(ctx),
		newItemsMoveCommand(ctx),
		newItemsRemoveCommand(ctx),
		newItemsBorrowCommand(ctx),
		newItemsReturnCommand(ctx),
		newItemsBorrowedCommand(ctx),
	)
	return cmd
}

func itemRows(items []*domain.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.ID, it.Name, it.Category, string(it.Status)})
	}
	return rows
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, optionally at one location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				var (
					items []*domain.Item
					err   error
				)
				if at != "" {
					items, err = a.inventory.ItemsAt(cmd.Context(), at)
				} else {
					items, err = a.inventory.ListItems(cmd.Context())
				}
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, items, []string{"ID", "Name", "Category", "Status"}, itemRows(items))
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Location ID")
	return cmd
}

func newItemsAddCommand(ctx *commandContext) *cobra.Command {
	var at, categoryName, description string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				loc, err := a.inventory.ResolveLocationPath(cmd.Context(), splitPath(at))
				if err != nil {
					return err
				}
				item, err := a.inventory.CreateItem(cmd.Context(), service.NewItem{
					Name:        args[0],
					Category:    categoryName,
					Description: description,
					LocationID:  loc.ID,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s\n", item.ID, item.Name, item.LocationPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", `Location path, e.g. "Garage > Shelf" (default room when empty)`)
	cmd.Flags().StringVar(&categoryName, "category", "", "Category (guessed from the name when empty)")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	return cmd
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item and where it is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				item, err := a.inventory.GetItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Name", item.Name},
					{"Category", item.Category},
					{"Status", string(item.Status)},
					{"Location", item.LocationPath},
				}
				if item.Description != "" {
					rows = append(rows, []string{"Description", item.Description})
				}
				if b := item.ActiveBorrow; b != nil {
					rows = append(rows, []string{"Taken by", b.TakenBy})
					if b.DueAt != nil {
						rows = append(rows, []string{"Due", b.DueAt.Format(time.DateOnly)})
					}
				}
				return ctx.printResult(cmd, item, []string{"Field", "Value"}, rows)
			})
		},
	}
}

func newItemsMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <id> <location-path>",
		Short: "Move an item to another location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				loc, err := a.inventory.ResolveLocationPath(cmd.Context(), splitPath(args[1]))
				if err != nil {
					return err
				}
				item, err := a.inventory.MoveItem(cmd.Context(), args[0], loc.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now at %s\n", item.Name, item.LocationPath)
				return nil
			})
		},
	}
}

func newItemsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				return a.inventory.DeleteItem(cmd.Context(), args[0])
			})
		},
	}
}

func newItemsBorrowCommand(ctx *commandContext) *cobra.Command {
	var by, due, note string
	cmd := &cobra.Command{
		Use:   "borrow <id>",
		Short: "Record that someone took an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dueAt *time.Time
			if due != "" {
				t, err := time.Parse(time.DateOnly, due)
				if err != nil {
					return fmt.Errorf("invalid --due %q, want YYYY-MM-DD", due)
				}
				dueAt = &t
			}
			return ctx.withApp(func(a *app) error {
				ev, err := a.inventory.BorrowItem(cmd.Context(), args[0], by, dueAt, note)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ev)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "borrowed by %s\n", ev.TakenBy)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Who took the item")
	cmd.Flags().StringVar(&due, "due", "", "Return date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	return cmd
}

func newItemsReturnCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "return <id>",
		Short: "Record that a borrowed item is back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				item, err := a.inventory.ReturnItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s returned\n", item.Name)
				return nil
			})
		},
	}
}

func newItemsBorrowedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "borrowed",
		Short: "List items that are currently out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				borrows, err := a.inventory.ActiveBorrows(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(borrows))
				for _, b := range borrows {
					due := ""
					if b.Event.DueAt != nil {
						due = b.Event.DueAt.Format(time.DateOnly)
						if b.Overdue {
							due += " (overdue)"
						}
					}
					rows = append(rows, []string{b.Item.Name, b.Event.TakenBy, b.Event.TakenAt.Format(time.DateOnly), due})
				}
				return ctx.printResult(cmd, borrows, []string{"Item", "Taken by", "Since", "Due"}, rows)
			})
		},
	}
}
