package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/config"
	"github.com/harnesslab/harness/internal/grafana"
	"github.com/harnesslab/harness/internal/monitor"
)

var (
	monitorDefsFile string
	monitorSchedule string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run and configure the SLO/invariant monitor",
}

var monitorApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply SLO and invariant definitions from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := config.LoadDefinitions(monitorDefsFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		green := color.New(color.FgGreen).SprintFunc()
		for _, d := range defs.SLOs {
			if err := store.CreateSLO(ctx, d.SLO()); err != nil {
				return fmt.Errorf("failed to apply slo %s: %w", d.Name, err)
			}
			fmt.Printf("%s slo %s\n", green("✓"), d.Name)
		}
		for _, d := range defs.Invariants {
			if err := store.CreateInvariant(ctx, d.Invariant()); err != nil {
				return fmt.Errorf("failed to apply invariant %s: %w", d.Name, err)
			}
			fmt.Printf("%s invariant %s\n", green("✓"), d.Name)
		}
		return nil
	},
}

var monitorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor loop",
	Long: `Evaluate all enabled SLOs and invariants on a schedule and file
tickets for violations. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics, err := metricSource()
		if err != nil {
			return err
		}
		schedule := monitorSchedule
		if schedule == "" {
			schedule = settings.MonitorSchedule
		}
		runner := monitor.NewRunner(store, metrics, schedule, daemonLogger())
		return runner.Start(cmd.Context())
	},
}

var monitorCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one evaluation cycle and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics, err := metricSource()
		if err != nil {
			return err
		}
		runner := monitor.NewRunner(store, metrics, settings.MonitorSchedule, daemonLogger())
		summary, err := runner.RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		for _, e := range summary.SLOEvaluations {
			mark := green("✓")
			if e.Violating {
				mark = red("✗")
			}
			fmt.Printf("%s slo %s burn=%.2f severity=%s\n", mark, e.SLOName, e.BurnRate, e.Severity)
		}
		for _, e := range summary.InvariantEvaluations {
			mark := green("✓")
			if !e.Passing {
				mark = red("✗")
			}
			fmt.Printf("%s invariant %s\n", mark, e.InvariantName)
		}
		for _, id := range summary.TicketsFiled {
			fmt.Printf("  filed %s\n", id)
		}
		return nil
	},
}

// metricSource builds the Prometheus client from settings.
func metricSource() (monitor.MetricSource, error) {
	if settings.PrometheusURL == "" {
		return nil, fmt.Errorf("prometheus_url is not configured")
	}
	return grafana.NewPrometheus(settings.PrometheusURL, settings.PrometheusUsername, settings.GrafanaAPIToken), nil
}

// daemonLogger returns the structured logger used by long-running commands.
func daemonLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func init() {
	monitorApplyCmd.Flags().StringVarP(&monitorDefsFile, "file", "f", "", "definitions YAML (required)")
	_ = monitorApplyCmd.MarkFlagRequired("file")
	monitorRunCmd.Flags().StringVar(&monitorSchedule, "schedule", "", "cron schedule (overrides config)")

	monitorCmd.AddCommand(monitorApplyCmd)
	monitorCmd.AddCommand(monitorRunCmd)
	monitorCmd.AddCommand(monitorCheckCmd)
	rootCmd.AddCommand(monitorCmd)
}
