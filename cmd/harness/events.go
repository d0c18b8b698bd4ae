package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harnesslab/harness/internal/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events <ticket-id>",
	Short: "Show a ticket's event history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := store.ListEvents(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		for _, ev := range events {
			fmt.Printf("%s %s %s", gray(ev.CreatedAt.Format(time.RFC3339)), cyan(ev.Kind), ev.Actor)
			if len(ev.Payload) > 0 {
				data, err := json.Marshal(ev.Payload)
				if err == nil {
					fmt.Printf(" %s", gray(string(data)))
				}
			}
			fmt.Println()
		}
		if len(events) == 0 {
			fmt.Println(gray("no events"))
		}
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <ticket-id> <text>",
	Short: "Attach a note to a ticket's event trail",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := addNote(cmd, args[0], args[1]); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s note added to %s\n", green("✓"), args[0])
		return nil
	},
}

func addNote(cmd *cobra.Command, ticketID, text string) error {
	_, err := store.AppendEvent(cmd.Context(), &types.TicketEvent{
		TicketID: ticketID,
		Kind:     types.EventNoteAdded,
		Actor:    actor,
		Payload:  map[string]any{"text": text},
	})
	return err
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(noteCmd)
}
