package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/harnesslab/harness/internal/types"
)

// DefaultModel balances capability and cost for remediation work.
const DefaultModel = "claude-sonnet-4-5"

// MaxTurns bounds the tool loop per ticket. A ticket that needs more than
// this is failed rather than left spinning.
const MaxTurns = 20

const systemPrompt = `You are an autonomous operations agent responsible for keeping a service healthy.

You are given one ticket at a time. Each ticket has an objective and success criteria. Your job is to investigate using the observe tools (query_metrics, query_logs, get_ticket), document what you find with add_note, and file follow-up tickets for work you discover but cannot do yourself.

When you are done, reply without using any tools and state the outcome clearly:
- Say "RESOLVED" if the success criteria are met.
- Say "BLOCKED" if you cannot proceed without something outside your control, and explain what.
- Say "FAILED" if the objective cannot be achieved.

Be methodical. Check metrics before and after drawing conclusions. Notes you record become the permanent record of this incident.`

// ClaudeHandler works tickets with the Messages API and the Toolkit.
type ClaudeHandler struct {
	client   anthropic.Client
	model    string
	toolkit  *Toolkit
	actor    string
	maxTurns int
	logger   *slog.Logger
}

// ClaudeConfig configures a ClaudeHandler.
type ClaudeConfig struct {
	APIKey   string // falls back to ANTHROPIC_API_KEY
	Model    string
	Actor    string
	MaxTurns int
	Toolkit  *Toolkit
	Logger   *slog.Logger
}

// NewClaudeHandler builds the stock handler.
func NewClaudeHandler(cfg ClaudeConfig) (*ClaudeHandler, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}
	if cfg.Toolkit == nil {
		return nil, fmt.Errorf("toolkit is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = MaxTurns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ClaudeHandler{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		toolkit:  cfg.Toolkit,
		actor:    cfg.Actor,
		maxTurns: maxTurns,
		logger:   logger,
	}, nil
}

// Handle drives the tool loop for one ticket.
func (h *ClaudeHandler) Handle(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(h.ticketPrompt(ticket))),
	}
	tools := h.toolkit.Definitions()

	for turn := 1; turn <= h.maxTurns; turn++ {
		response, err := h.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(h.model),
			MaxTokens: 4096,
			System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("anthropic API call failed: %w", err)
		}

		if response.StopReason == "end_turn" {
			var text strings.Builder
			for _, block := range response.Content {
				if block.Type == "text" {
					text.WriteString(block.Text)
				}
			}
			outcome := Outcome{
				Status:  classifyFinalMessage(text.String()),
				Summary: text.String(),
				Turns:   turn,
			}
			h.logger.Info("handler finished ticket",
				"ticket", ticket.ID, "status", outcome.Status, "turns", turn)
			return outcome, nil
		}

		if response.StopReason != "tool_use" {
			return Outcome{}, fmt.Errorf("unexpected stop reason %q on ticket %s", response.StopReason, ticket.ID)
		}

		messages = append(messages, response.ToParam())

		var toolResults []anthropic.ContentBlockParamUnion
		for _, block := range response.Content {
			toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
			if !ok {
				continue
			}
			h.logger.Debug("executing tool",
				"ticket", ticket.ID, "tool", toolUse.Name, "turn", turn)
			result, err := h.toolkit.Execute(ctx, ticket.ID, h.actor, toolUse.Name, toolUse.Input)
			if err != nil {
				toolResults = append(toolResults,
					anthropic.NewToolResultBlock(toolUse.ID, fmt.Sprintf("Error: %v", err), true))
				continue
			}
			toolResults = append(toolResults,
				anthropic.NewToolResultBlock(toolUse.ID, result, false))
		}
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}

	return Outcome{
		Status:  types.StatusFailed,
		Summary: fmt.Sprintf("exceeded %d turns without resolution", h.maxTurns),
		Turns:   h.maxTurns,
	}, nil
}

func (h *ClaudeHandler) ticketPrompt(ticket *types.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Work this ticket.\n\nTicket ID: %s\nObjective: %s\n", ticket.ID, ticket.Objective)
	if ticket.SuccessCriteria != "" {
		fmt.Fprintf(&b, "Success criteria: %s\n", ticket.SuccessCriteria)
	}
	fmt.Fprintf(&b, "Priority: %s\nSource: %s\n", ticket.Priority, ticket.SourceKind)
	if len(ticket.Context) > 0 {
		b.WriteString("Context:\n")
		for k, v := range ticket.Context {
			fmt.Fprintf(&b, "  %s: %v\n", k, v)
		}
	}
	return b.String()
}

// classifyFinalMessage maps the model's closing statement to a terminal
// status. Ambiguous answers count as completed; the explicit markers in
// the system prompt make that the rare case.
func classifyFinalMessage(text string) types.Status {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "blocked"):
		return types.StatusBlocked
	case strings.Contains(lower, "failed"):
		return types.StatusFailed
	case strings.Contains(lower, "resolved"), strings.Contains(lower, "completed"), strings.Contains(lower, "fixed"):
		return types.StatusCompleted
	}
	return types.StatusCompleted
}
