package main

import (
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/service"
)

var serviceAddr string

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run the managed rate-limiter service",
	Long: `Start the sample service the harness manages: a per-client rate limiter
with check, stats and admin endpoints plus a Prometheus /metrics scrape
target. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serviceAddr
		if addr == "" {
			addr = settings.ServiceListenAddr
		}
		limiter := service.NewClientLimiter(settings.ServiceRate, settings.ServiceBurst)
		server := service.NewServer(addr, limiter, daemonLogger())
		return server.Start(cmd.Context())
	},
}

func init() {
	serviceCmd.Flags().StringVar(&serviceAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serviceCmd)
}
