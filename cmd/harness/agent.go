package main

import (
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/agent"
	"github.com/harnesslab/harness/internal/grafana"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the autonomous agent",
}

var agentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll for ready tickets and work them",
	Long: `Register as an agent instance and loop: claim a ready ticket, hand it
to the model with the observability toolkit, record the outcome, repeat.
Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := daemonLogger()

		var prometheus *grafana.Prometheus
		if settings.PrometheusURL != "" {
			prometheus = grafana.NewPrometheus(settings.PrometheusURL, settings.PrometheusUsername, settings.GrafanaAPIToken)
		}
		var loki *grafana.Loki
		if settings.LokiURL != "" {
			loki = grafana.NewLoki(settings.LokiURL, settings.LokiUsername, settings.GrafanaAPIToken)
		}

		handler, err := agent.NewClaudeHandler(agent.ClaudeConfig{
			APIKey:  settings.AnthropicAPIKey,
			Model:   settings.AnthropicModel,
			Actor:   "agent",
			Toolkit: agent.NewToolkit(store, prometheus, loki),
			Logger:  logger,
		})
		if err != nil {
			return err
		}

		runner, err := agent.NewRunner(agent.RunnerConfig{
			Store:             store,
			Handler:           handler,
			PollInterval:      settings.AgentPollInterval,
			HeartbeatInterval: settings.HeartbeatInterval,
			Logger:            logger,
		})
		if err != nil {
			return err
		}
		return runner.Start(cmd.Context())
	},
}

func init() {
	agentCmd.AddCommand(agentRunCmd)
	rootCmd.AddCommand(agentCmd)
}
