package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ticket counts and registered agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stats, err := store.GetStatistics(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\nTickets: %d total\n", stats.TotalTickets)
		fmt.Printf("  %s %d\n", color.YellowString("pending:    "), stats.PendingTickets)
		fmt.Printf("  %s %d\n", color.CyanString("in_progress:"), stats.InProgressTickets)
		fmt.Printf("  %s %d\n", color.GreenString("completed:  "), stats.CompletedTickets)
		fmt.Printf("  %s %d\n", color.RedString("failed:     "), stats.FailedTickets)
		fmt.Printf("  %s %d\n", color.MagentaString("blocked:    "), stats.BlockedTickets)
		fmt.Printf("  ready:       %d\n", stats.ReadyTickets)

		instances, err := store.GetActiveInstances(ctx)
		if err != nil {
			return err
		}
		if len(instances) > 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("\nAgents:\n")
			for _, inst := range instances {
				age := time.Since(inst.LastHeartbeat).Round(time.Second)
				fmt.Printf("  %s %s pid=%d %s\n",
					inst.InstanceID, inst.Hostname, inst.PID,
					gray(fmt.Sprintf("heartbeat %s ago", age)))
			}
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
