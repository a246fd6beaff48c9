package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/service"
)

func newLocationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "locations",
		Aliases: []string{"loc"},
		Short:   "Manage rooms and storage locations",
	}
	cmd.AddCommand(
		newLocationsListCommand(ctx),
		newLocationsTreeCommand(ctx),
		newLocationsAddCommand(ctx),
		newLocationsRenameCommand(ctx),
		newLocationsMoveCommand(ctx),
		newLocationsRemoveCommand(ctx),
	)
	return cmd
}

func newLocationsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every location with its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				locs, err := a.inventory.ListLocations(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(locs))
				for _, l := range locs {
					path, err := a.inventory.LocationPath(cmd.Context(), l.ID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{l.ID, path, string(l.Kind)})
				}
				return ctx.printResult(cmd, locs, []string{"ID", "Path", "Kind"}, rows)
			})
		},
	}
}

func newLocationsTreeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the location hierarchy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				tree, err := a.inventory.LocationTree(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, tree)
				}
				for _, n := range tree {
					printNode(cmd.OutOrStdout(), n, 0)
				}
				return nil
			})
		},
	}
}

func printNode(w io.Writer, n *service.LocationNode, depth int) {
	fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth), n.Name, n.Kind)
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

func newLocationsAddCommand(ctx *commandContext) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: `Create a location by path, e.g. "Garage > Shelf > Red Box"`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments := splitPath(args[0])
			if len(segments) == 0 {
				return fmt.Errorf("empty location path %q", args[0])
			}
			return ctx.withApp(func(a *app) error {
				var (
					loc *domain.Location
					err error
				)
				switch {
				case kind != "":
					var parentID *string
					if len(segments) > 1 {
						parent, perr := a.inventory.ResolveLocationPath(cmd.Context(), segments[:len(segments)-1])
						if perr != nil {
							return perr
						}
						parentID = &parent.ID
					}
					loc, err = a.inventory.AddLocation(cmd.Context(), segments[len(segments)-1], domain.LocationKind(kind), parentID)
				case len(segments) == 1:
					loc, err = a.inventory.AddRoom(cmd.Context(), segments[0])
				default:
					loc, err = a.inventory.ResolveLocationPath(cmd.Context(), segments)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, loc)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", loc.ID, loc.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Kind of the last segment: storage, container or furniture")
	return cmd
}

func newLocationsRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				loc, err := a.inventory.RenameLocation(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "renamed to %s\n", loc.Name)
				return nil
			})
		},
	}
}

func newLocationsMoveCommand(ctx *commandContext) *cobra.Command {
	var toRoot bool
	cmd := &cobra.Command{
		Use:   "mv <id> [parent-id]",
		Short: "Move a location under another one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parentID *string
			switch {
			case len(args) == 2 && !toRoot:
				parentID = &args[1]
			case len(args) == 1 && toRoot:
			default:
				return fmt.Errorf("give either a parent id or --root")
			}
			return ctx.withApp(func(a *app) error {
				loc, err := a.inventory.MoveLocation(cmd.Context(), args[0], parentID)
				if err != nil {
					return err
				}
				path, err := a.inventory.LocationPath(cmd.Context(), loc.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "moved to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&toRoot, "root", false, "Make the location a room")
	return cmd
}

func newLocationsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an empty location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				return a.inventory.DeleteLocation(cmd.Context(), args[0])
			})
		},
	}
}
