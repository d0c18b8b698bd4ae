package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/storage"
	"github.com/harnesslab/harness/internal/types"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage ticket dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add <ticket-id> <depends-on-id>",
	Short: "Add a dependency edge",
	Long: `Record that the first ticket depends on the second. Edges that would
create a cycle are rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := store.AddDependency(cmd.Context(), &types.Dependency{
			TicketID:    args[0],
			DependsOnID: args[1],
		}, actor)
		if errors.Is(err, storage.ErrCycleDetected) {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s edge %s → %s would create a cycle\n", red("✗"), args[0], args[1])
			return err
		}
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s now depends on %s\n", green("✓"), args[0], args[1])
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <ticket-id> <depends-on-id>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.RemoveDependency(cmd.Context(), args[0], args[1], actor); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s removed dependency %s → %s\n", green("✓"), args[0], args[1])
		return nil
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <ticket-id>",
	Short: "List a ticket's dependencies and dependents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := store.GetDependencies(ctx, args[0])
		if err != nil {
			return err
		}
		dependents, err := store.GetDependents(ctx, args[0])
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Println("Depends on:")
		if len(deps) == 0 {
			fmt.Printf("  %s\n", gray("nothing"))
		}
		for _, d := range deps {
			fmt.Printf("  %s %s %s\n", d.ID, statusColored(d.Status), gray(d.Objective))
		}
		fmt.Println("Blocks:")
		if len(dependents) == 0 {
			fmt.Printf("  %s\n", gray("nothing"))
		}
		for _, d := range dependents {
			fmt.Printf("  %s %s %s\n", d.ID, statusColored(d.Status), gray(d.Objective))
		}
		return nil
	},
}

func init() {
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depListCmd)
	rootCmd.AddCommand(depCmd)
}
