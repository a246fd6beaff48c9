package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vbonduro/placemate/internal/service"
)

func readImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var room, hint string
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Recognize a photo and merge what it shows into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, mimeType, err := readImage(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app) error {
				scans, err := a.scanService()
				if err != nil {
					return err
				}
				report, err := scans.Scan(cmd.Context(), service.ScanRequest{
					Image:    data,
					MimeType: mimeType,
					Hint:     hint,
					Room:     room,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				return printScanReport(cmd, a, report)
			})
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "Use this room instead of the detected one")
	cmd.Flags().StringVar(&hint, "hint", "", "Describe where the photo was taken")
	return cmd
}

func printScanReport(cmd *cobra.Command, a *app, report *service.ScanReport) error {
	out := cmd.OutOrStdout()
	if report.Empty {
		fmt.Fprintln(out, "Nothing was recognized. Add a room by hand with `placemate locations add`.")
		return nil
	}
	fmt.Fprintf(out, "Room: %s (%d detections, %d new locations, %d reused)\n",
		report.Root.Name, report.Detections, len(report.Created), len(report.Reused))

	rows := make([][]string, 0, len(report.Items))
	for _, it := range report.Items {
		path, err := a.inventory.LocationPath(cmd.Context(), it.LocationID)
		if err != nil {
			return err
		}
		rows = append(rows, []string{it.Item.Name, it.Item.Category, path})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Item", "Category", "Location"}, rows, nil))
	}
	for _, u := range report.Unresolved {
		fmt.Fprintf(out, "warning: %q placed in the room (%s parent %q)\n", u.Label, u.Reason, u.ParentLabel)
	}
	return nil
}

func newAuditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <location-id> <image>",
		Short: "Compare a fresh photo of a location with its catalog entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, mimeType, err := readImage(args[1])
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app) error {
				scans, err := a.scanService()
				if err != nil {
					return err
				}
				report, err := scans.Audit(cmd.Context(), args[0], data, mimeType)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(report.Entries))
				for i, e := range report.Entries {
					rows = append(rows, []string{strconv.Itoa(i + 1), e.Name, string(e.Status)})
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(cmd.OutOrStdout(), "Audit of %s\n", report.Path)
				}
				return ctx.printResult(cmd, report, []string{"#", "Name", "Status"}, rows)
			})
		},
	}
}
