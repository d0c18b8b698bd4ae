package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/types"
)

var (
	cleanupStaleAfter time.Duration
	cleanupRelease    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Find tickets claimed by dead agents",
	Long: `Find in-progress tickets whose claiming agent instance has stopped
heartbeating. By default the stale claims are only reported; with
--release each one is returned to pending so another agent can pick
it up. Claims held by actors that are not registered agent instances
(humans working via the CLI) are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		staleAfter := cleanupStaleAfter
		if staleAfter <= 0 {
			staleAfter = settings.StaleAfter
		}

		instances, err := store.GetActiveInstances(ctx)
		if err != nil {
			return err
		}
		lastSeen := make(map[string]time.Time, len(instances))
		for _, inst := range instances {
			lastSeen[inst.InstanceID] = inst.LastHeartbeat
		}

		status := types.StatusInProgress
		tickets, err := store.ListTickets(ctx, types.TicketFilter{Status: &status})
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		cutoff := time.Now().Add(-staleAfter)
		var stale int
		for _, t := range tickets {
			heartbeat, registered := lastSeen[t.ClaimedBy]
			if !registered || heartbeat.After(cutoff) {
				continue
			}
			stale++
			age := time.Since(heartbeat).Round(time.Second)
			fmt.Printf("%s %s claimed by %s %s\n",
				yellow("⚠"), t.ID, t.ClaimedBy, gray(fmt.Sprintf("last heartbeat %s ago", age)))

			if !cleanupRelease {
				continue
			}
			reason := fmt.Sprintf("released: agent %s stopped heartbeating", t.ClaimedBy)
			err := store.ApplyTransition(ctx, t.ID, types.StatusInProgress, types.StatusPending, reason, actor)
			if err != nil {
				fmt.Printf("  failed to release: %v\n", err)
				continue
			}
			fmt.Printf("  %s released to pending\n", green("✓"))
		}

		if stale == 0 {
			fmt.Println(gray("no stale claims"))
		} else if !cleanupRelease {
			fmt.Printf("\n%d stale claim(s); rerun with --release to return them to pending\n", stale)
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupStaleAfter, "stale-after", 0, "staleness threshold (overrides config)")
	cleanupCmd.Flags().BoolVar(&cleanupRelease, "release", false, "release stale claims back to pending")
	rootCmd.AddCommand(cleanupCmd)
}
