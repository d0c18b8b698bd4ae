package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/types"
)

var (
	invDescription string
	invQuery       string
	invCondition   string
)

var invariantCmd = &cobra.Command{
	Use:   "invariant",
	Short: "Manage system invariants",
}

var invariantCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Define an invariant",
	Long: `Define an invariant: a PromQL query plus a condition like "< 0.5" or
">= 1" that the query result must always satisfy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv := &types.Invariant{
			Name:        args[0],
			Description: invDescription,
			Query:       invQuery,
			Condition:   invCondition,
			Enabled:     true,
		}
		if err := store.CreateInvariant(cmd.Context(), inv); err != nil {
			return err
		}
		fmt.Printf("%s invariant %s created (%s %s)\n",
			color.GreenString("✓"), inv.Name, inv.Query, inv.Condition)
		return nil
	},
}

var invariantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invariants",
	RunE: func(cmd *cobra.Command, args []string) error {
		invs, err := store.ListInvariants(cmd.Context(), false)
		if err != nil {
			return err
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(invs) == 0 {
			fmt.Println(gray("no invariants defined"))
			return nil
		}
		for _, inv := range invs {
			state := color.GreenString("enabled")
			if !inv.Enabled {
				state = gray("disabled")
			}
			fmt.Printf("%-24s %s  %s %s\n", inv.Name, state, gray(inv.Query), inv.Condition)
		}
		return nil
	},
}

var invariantEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an invariant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setInvariantEnabled(cmd, args[0], true)
	},
}

var invariantDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an invariant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setInvariantEnabled(cmd, args[0], false)
	},
}

func setInvariantEnabled(cmd *cobra.Command, name string, enabled bool) error {
	if err := store.SetInvariantEnabled(cmd.Context(), name, enabled); err != nil {
		return err
	}
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	fmt.Printf("%s invariant %s %s\n", color.GreenString("✓"), name, verb)
	return nil
}

func init() {
	invariantCreateCmd.Flags().StringVar(&invDescription, "description", "", "human description")
	invariantCreateCmd.Flags().StringVar(&invQuery, "query", "", "PromQL query (required)")
	invariantCreateCmd.Flags().StringVar(&invCondition, "condition", "", `condition, e.g. "< 0.5" (required)`)
	_ = invariantCreateCmd.MarkFlagRequired("query")
	_ = invariantCreateCmd.MarkFlagRequired("condition")

	invariantCmd.AddCommand(invariantCreateCmd)
	invariantCmd.AddCommand(invariantListCmd)
	invariantCmd.AddCommand(invariantEnableCmd)
	invariantCmd.AddCommand(invariantDisableCmd)
	rootCmd.AddCommand(invariantCmd)
}
