package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/types"
)

var (
	createCriteria string
	createPriority string
	createSource   string
	createSourceID string
	createContext  []string
)

var createCmd = &cobra.Command{
	Use:   "create <objective>",
	Short: "Create a new ticket",
	Long: `Create a ticket in pending status.

When --source and --source-id are set and an open ticket for that source
already exists, no new ticket is created; the existing ticket's id is
printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority := types.PriorityMedium
		if createPriority != "" {
			p, err := types.ParsePriority(createPriority)
			if err != nil {
				return err
			}
			priority = p
		}

		sourceKind := types.SourceHuman
		if createSource != "" {
			sourceKind = types.SourceKind(createSource)
		}

		ticketCtx := map[string]any{}
		for _, kv := range createContext {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --context value %q: expected key=value", kv)
			}
			ticketCtx[k] = v
		}

		result, err := store.CreateTicket(cmd.Context(), &types.Ticket{
			Objective:       args[0],
			SuccessCriteria: createCriteria,
			Priority:        priority,
			SourceKind:      sourceKind,
			SourceID:        createSourceID,
			Context:         ticketCtx,
		}, actor)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		if result.Deduplicated {
			fmt.Printf("%s open ticket already exists for this source: %s\n",
				yellow("⚠"), result.TicketID)
			return nil
		}
		fmt.Printf("%s created %s\n", green("✓"), result.TicketID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createCriteria, "criteria", "", "success criteria")
	createCmd.Flags().StringVarP(&createPriority, "priority", "p", "", "priority: low, medium, high, critical")
	createCmd.Flags().StringVar(&createSource, "source", "", "source kind (default: human)")
	createCmd.Flags().StringVar(&createSourceID, "source-id", "", "source identifier for deduplication")
	createCmd.Flags().StringArrayVar(&createContext, "context", nil, "context entries as key=value (repeatable)")
	rootCmd.AddCommand(createCmd)
}
