package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/types"
)

var (
	sloDescription string
	sloTarget      float64
	sloWindow      int
	sloQuery       string
)

var sloCmd = &cobra.Command{
	Use:   "slo",
	Short: "Manage service level objectives",
}

var sloCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Define an SLO",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slo := &types.SLO{
			Name:        args[0],
			Description: sloDescription,
			Target:      sloTarget,
			WindowDays:  sloWindow,
			MetricQuery: sloQuery,
			Enabled:     true,
		}
		if err := store.CreateSLO(cmd.Context(), slo); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s SLO %s created (target %.3f%%, %dd window)\n",
			green("✓"), slo.Name, slo.Target*100, slo.WindowDays)
		return nil
	},
}

var sloListCmd = &cobra.Command{
	Use:   "list",
	Short: "List SLOs",
	RunE: func(cmd *cobra.Command, args []string) error {
		slos, err := store.ListSLOs(cmd.Context(), false)
		if err != nil {
			return err
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(slos) == 0 {
			fmt.Println(gray("no SLOs defined"))
			return nil
		}
		for _, s := range slos {
			state := color.GreenString("enabled")
			if !s.Enabled {
				state = gray("disabled")
			}
			fmt.Printf("%-24s %7.3f%%  %2dd  %s  %s\n",
				s.Name, s.Target*100, s.WindowDays, state, gray(s.MetricQuery))
		}
		return nil
	},
}

var sloEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an SLO",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSLOEnabled(cmd, args[0], true)
	},
}

var sloDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an SLO",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSLOEnabled(cmd, args[0], false)
	},
}

func setSLOEnabled(cmd *cobra.Command, name string, enabled bool) error {
	if err := store.SetSLOEnabled(cmd.Context(), name, enabled); err != nil {
		return err
	}
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	fmt.Printf("%s SLO %s %s\n", color.GreenString("✓"), name, verb)
	return nil
}

func init() {
	sloCreateCmd.Flags().StringVar(&sloDescription, "description", "", "human description")
	sloCreateCmd.Flags().Float64Var(&sloTarget, "target", 0.999, "target ratio, e.g. 0.999 for 99.9%")
	sloCreateCmd.Flags().IntVar(&sloWindow, "window", 30, "SLO window in days")
	sloCreateCmd.Flags().StringVar(&sloQuery, "query", "", "PromQL returning current success percentage (required)")
	_ = sloCreateCmd.MarkFlagRequired("query")

	sloCmd.AddCommand(sloCreateCmd)
	sloCmd.AddCommand(sloListCmd)
	sloCmd.AddCommand(sloEnableCmd)
	sloCmd.AddCommand(sloDisableCmd)
	rootCmd.AddCommand(sloCmd)
}
