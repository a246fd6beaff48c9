package main

import (
	"github.com/spf13/cobra"

	"github.com/vbonduro/placemate/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				scans, err := a.scanService()
				if err != nil {
					return err
				}
				if addr == "" {
					addr = a.cfg.ListenAddr
				}
				server := web.NewServer(scans, a.inventory, a.photos, a.logger)
				return server.ListenAndServe(cmd.Context(), addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default listen_addr)")
	return cmd
}
