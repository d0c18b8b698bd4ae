package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/config"
	"github.com/harnesslab/harness/internal/storage"
)

// Shared state for all subcommands, populated by the root PersistentPreRunE.
var (
	store    storage.Storage
	settings *config.Settings

	configPath string
	dbURL      string
	actor      string
)

var rootCmd = &cobra.Command{
	Use:   "harness",
	Short: "Ticket workflow engine for autonomous service management",
	Long: `harness keeps a service healthy by closing the loop between observation
and action: the monitor watches SLOs and invariants and files tickets, the
agent claims tickets and works them, and every step lands in an immutable
event trail.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(configPath)
		if err != nil {
			return err
		}
		url := dbURL
		if url == "" {
			url = settings.DatabaseURL
		}
		store, err = storage.NewStorage(cmd.Context(), &storage.Config{URL: url})
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .harness/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database URL or sqlite path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor recorded on events")
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
