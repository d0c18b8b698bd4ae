package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/types"
)

var (
	listStatus string
	listSource string
	listReady  bool
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets in claim order",
	Long:  `List tickets ordered by priority (highest first), then creation time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.TicketFilter{Ready: listReady, Limit: listLimit}
		if listStatus != "" {
			status := types.Status(listStatus)
			if !status.IsValid() {
				return fmt.Errorf("invalid status %q", listStatus)
			}
			filter.Status = &status
		}
		if listSource != "" {
			kind := types.SourceKind(listSource)
			if !kind.IsValid() {
				return fmt.Errorf("invalid source kind %q", listSource)
			}
			filter.SourceKind = &kind
		}

		tickets, err := store.ListTickets(cmd.Context(), filter)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(tickets) == 0 {
			fmt.Println(gray("No tickets match"))
			return nil
		}
		for _, t := range tickets {
			fmt.Printf("%s  %-12s %-8s %s\n",
				t.ID, statusColored(t.Status), t.Priority, t.Objective)
		}
		return nil
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List tickets ready to claim",
	Long:  `List pending tickets whose dependencies are all completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tickets, err := store.GetReadyTickets(cmd.Context(), listLimit)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(tickets) == 0 {
			fmt.Println(gray("No ready work"))
			return nil
		}
		for _, t := range tickets {
			fmt.Printf("%s  %-8s %s\n", t.ID, t.Priority, t.Objective)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().StringVar(&listSource, "source", "", "filter by source kind")
	listCmd.Flags().BoolVar(&listReady, "ready", false, "only tickets ready to claim")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "max results")
	readyCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "max results")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(readyCmd)
}
