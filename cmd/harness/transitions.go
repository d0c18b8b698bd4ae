package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/storage"
	"github.com/harnesslab/harness/internal/types"
)

var transitionReason string

var claimCmd = &cobra.Command{
	Use:   "claim <ticket-id>",
	Short: "Claim a pending ticket",
	Long: `Atomically move a pending ticket to in_progress under your actor name.
If someone else claims it first, the command reports the conflict and
exits nonzero.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticket, err := store.ClaimTicket(cmd.Context(), args[0], actor)
		if errors.Is(err, storage.ErrClaimConflict) {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s ticket %s was claimed by someone else\n", yellow("⚠"), args[0])
			return err
		}
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s claimed %s: %s\n", green("✓"), ticket.ID, ticket.Objective)
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <ticket-id>",
	Short: "Mark an in-progress ticket completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transition(cmd, args[0], types.StatusInProgress, types.StatusCompleted)
	},
}

var failCmd = &cobra.Command{
	Use:   "fail <ticket-id>",
	Short: "Mark an in-progress ticket failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transition(cmd, args[0], types.StatusInProgress, types.StatusFailed)
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <ticket-id>",
	Short: "Mark an in-progress ticket blocked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transition(cmd, args[0], types.StatusInProgress, types.StatusBlocked)
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <ticket-id>",
	Short: "Return a blocked ticket to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transition(cmd, args[0], types.StatusBlocked, types.StatusPending)
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <ticket-id>",
	Short: "Release an in-progress ticket back to pending",
	Long: `Give up a claim: the ticket returns to pending and becomes claimable
again. This is an ordinary transition; the full history is preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transition(cmd, args[0], types.StatusInProgress, types.StatusPending)
	},
}

func transition(cmd *cobra.Command, id string, from, to types.Status) error {
	reason := transitionReason
	if reason == "" {
		reason = fmt.Sprintf("%s via cli", to)
	}
	if err := store.ApplyTransition(cmd.Context(), id, from, to, reason, actor); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s is now %s\n", green("✓"), id, statusColored(to))
	return nil
}

func init() {
	for _, c := range []*cobra.Command{completeCmd, failCmd, blockCmd, unblockCmd, releaseCmd} {
		c.Flags().StringVarP(&transitionReason, "reason", "r", "", "reason recorded on the event")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(claimCmd)
}
