package main

import (
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API and webhook receiver",
	Long: `Start the HTTP server: read-only JSON endpoints over the ticket store
plus the authenticated alert webhook. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = settings.ListenAddr
		}
		server := web.NewServer(addr, store, settings.WebhookSecret, daemonLogger())
		return server.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
