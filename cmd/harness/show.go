package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show <ticket-id>",
	Short: "Show a ticket with its dependencies and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ticket, err := store.GetTicket(ctx, args[0])
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s %s\n\n", cyan(ticket.ID), statusColored(ticket.Status))
		fmt.Printf("  Objective: %s\n", ticket.Objective)
		if ticket.SuccessCriteria != "" {
			fmt.Printf("  Criteria:  %s\n", ticket.SuccessCriteria)
		}
		fmt.Printf("  Priority:  %s\n", ticket.Priority)
		fmt.Printf("  Source:    %s", ticket.SourceKind)
		if ticket.SourceID != "" {
			fmt.Printf(" (%s)", ticket.SourceID)
		}
		fmt.Println()
		if ticket.ClaimedBy != "" {
			fmt.Printf("  Claimed:   %s\n", ticket.ClaimedBy)
		}
		fmt.Printf("  Created:   %s\n", ticket.CreatedAt.Format("2006-01-02 15:04:05"))
		if ticket.ResolvedAt != nil {
			fmt.Printf("  Resolved:  %s\n", ticket.ResolvedAt.Format("2006-01-02 15:04:05"))
		}
		if len(ticket.Context) > 0 {
			fmt.Printf("  Context:\n")
			for k, v := range ticket.Context {
				fmt.Printf("    %s: %v\n", k, v)
			}
		}

		deps, err := store.GetDependencies(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if len(deps) > 0 {
			fmt.Printf("\n  Depends on:\n")
			for _, d := range deps {
				fmt.Printf("    %s %s %s\n", d.ID, statusColored(d.Status), gray(d.Objective))
			}
		}

		dependents, err := store.GetDependents(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			fmt.Printf("\n  Blocks:\n")
			for _, d := range dependents {
				fmt.Printf("    %s %s %s\n", d.ID, statusColored(d.Status), gray(d.Objective))
			}
		}

		events, err := store.ListEvents(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			fmt.Printf("\n  History:\n")
			for _, e := range events {
				fmt.Printf("    %s %s", gray(e.CreatedAt.Format(time.RFC3339)), e.Kind)
				if e.Actor != "" {
					fmt.Printf(" %s", gray("by "+e.Actor))
				}
				fmt.Println()
			}
		}
		fmt.Println()
		return nil
	},
}

func statusColored(s types.Status) string {
	switch s {
	case types.StatusPending:
		return color.New(color.FgYellow).Sprint(string(s))
	case types.StatusInProgress:
		return color.New(color.FgCyan).Sprint(string(s))
	case types.StatusCompleted:
		return color.New(color.FgGreen).Sprint(string(s))
	case types.StatusFailed:
		return color.New(color.FgRed).Sprint(string(s))
	case types.StatusBlocked:
		return color.New(color.FgMagenta).Sprint(string(s))
	}
	return string(s)
}

func init() {
	rootCmd.AddCommand(showCmd)
}
