package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/harnesslab/harness/internal/grafana"
	"github.com/harnesslab/harness/internal/storage"
	"github.com/harnesslab/harness/internal/types"
)

// Toolkit is the set of tools the Claude handler can invoke while working
// a ticket. Observe tools query metrics and logs; act tools write notes and
// file follow-up tickets. Every invocation is recorded as an agent_action
// event on the ticket being worked.
type Toolkit struct {
	store      storage.Storage
	prometheus *grafana.Prometheus
	loki       *grafana.Loki
}

func NewToolkit(store storage.Storage, prometheus *grafana.Prometheus, loki *grafana.Loki) *Toolkit {
	return &Toolkit{store: store, prometheus: prometheus, loki: loki}
}

// Definitions returns the tool schemas for the Messages API.
func (t *Toolkit) Definitions() []anthropic.ToolUnionParam {
	toolParams := []anthropic.ToolParam{
		{
			Name:        "query_metrics",
			Description: anthropic.String("Query Prometheus metrics using PromQL. Use this to check current system state, error rates, latencies."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "PromQL query string, e.g. 'rate(http_requests_total[5m])'"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "query_logs",
			Description: anthropic.String("Query Loki logs using LogQL. Use this to search for error messages and debug output."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"query":         map[string]interface{}{"type": "string", "description": "LogQL query string, e.g. '{service=\"api\"} |= \"error\"'"},
					"range_minutes": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 1440, "description": "How far back to search (default: 60)"},
					"limit":         map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 500, "description": "Max log lines (default: 50)"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "get_ticket",
			Description: anthropic.String("Get full details of a ticket including its dependencies and event history."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"ticket_id": map[string]interface{}{"type": "string", "description": "Ticket ID (required)"},
				},
				Required: []string{"ticket_id"},
			},
		},
		{
			Name:        "add_note",
			Description: anthropic.String("Record a note on the ticket being worked. Use this to document findings as you investigate."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"note": map[string]interface{}{"type": "string", "description": "Note text (required)"},
				},
				Required: []string{"note"},
			},
		},
		{
			Name:        "file_ticket",
			Description: anthropic.String("File a follow-up ticket for work discovered during investigation. Returns the new ticket ID."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"objective":        map[string]interface{}{"type": "string", "description": "What needs to be done (required)"},
					"success_criteria": map[string]interface{}{"type": "string", "description": "How to tell it is done"},
					"priority":         map[string]interface{}{"type": "string", "enum": []string{"low", "medium", "high", "critical"}, "description": "Priority (default: medium)"},
				},
				Required: []string{"objective"},
			},
		},
	}

	tools := make([]anthropic.ToolUnionParam, len(toolParams))
	for i := range toolParams {
		tool := toolParams[i]
		tools[i] = anthropic.ToolUnionParam{OfTool: &tool}
	}
	return tools
}

// Execute runs one tool call in the context of ticketID and returns the
// result to feed back to the model. actor names the agent instance.
func (t *Toolkit) Execute(ctx context.Context, ticketID, actor, name string, input json.RawMessage) (string, error) {
	result, err := t.dispatch(ctx, ticketID, actor, name, input)

	payload := map[string]any{"tool": name, "success": err == nil}
	if err != nil {
		payload["error"] = err.Error()
	}
	if _, evErr := t.store.AppendEvent(ctx, &types.TicketEvent{
		TicketID: ticketID,
		Kind:     types.EventAgentAction,
		Actor:    actor,
		Payload:  payload,
	}); evErr != nil {
		return "", fmt.Errorf("failed to record agent action: %w", evErr)
	}

	return result, err
}

func (t *Toolkit) dispatch(ctx context.Context, ticketID, actor, name string, input json.RawMessage) (string, error) {
	switch name {
	case "query_metrics":
		return t.queryMetrics(ctx, input)
	case "query_logs":
		return t.queryLogs(ctx, input)
	case "get_ticket":
		return t.getTicket(ctx, input)
	case "add_note":
		return t.addNote(ctx, ticketID, actor, input)
	case "file_ticket":
		return t.fileTicket(ctx, ticketID, actor, input)
	}
	return "", fmt.Errorf("unknown tool %q", name)
}

func (t *Toolkit) queryMetrics(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad query_metrics input: %w", err)
	}
	if t.prometheus == nil {
		return "", fmt.Errorf("prometheus is not configured")
	}

	value, ok, err := t.prometheus.MetricValue(ctx, args.Query)
	if err != nil {
		return "", err
	}
	if !ok {
		return "no data", nil
	}
	return fmt.Sprintf("%g", value), nil
}

func (t *Toolkit) queryLogs(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Query        string `json:"query"`
		RangeMinutes int    `json:"range_minutes"`
		Limit        int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad query_logs input: %w", err)
	}
	if t.loki == nil {
		return "", fmt.Errorf("loki is not configured")
	}
	if args.RangeMinutes <= 0 {
		args.RangeMinutes = 60
	}
	if args.Limit <= 0 {
		args.Limit = 50
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(args.RangeMinutes) * time.Minute)
	entries, err := t.loki.Query(ctx, args.Query, start, end, args.Limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "no log entries matched", nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s\n", e.Timestamp.Format(time.RFC3339), e.Line)
	}
	return b.String(), nil
}

func (t *Toolkit) getTicket(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad get_ticket input: %w", err)
	}

	ticket, err := t.store.GetTicket(ctx, args.TicketID)
	if err != nil {
		return "", err
	}
	deps, err := t.store.GetDependencies(ctx, args.TicketID)
	if err != nil {
		return "", err
	}

	out := map[string]any{"ticket": ticket}
	if len(deps) > 0 {
		ids := make([]string, len(deps))
		for i, d := range deps {
			ids[i] = fmt.Sprintf("%s (%s)", d.ID, d.Status)
		}
		out["depends_on"] = ids
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket: %w", err)
	}
	return string(data), nil
}

func (t *Toolkit) addNote(ctx context.Context, ticketID, actor string, input json.RawMessage) (string, error) {
	var args struct {
		Note string `json:"note"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad add_note input: %w", err)
	}
	if strings.TrimSpace(args.Note) == "" {
		return "", fmt.Errorf("note must not be empty")
	}

	if _, err := t.store.AppendEvent(ctx, &types.TicketEvent{
		TicketID: ticketID,
		Kind:     types.EventNoteAdded,
		Actor:    actor,
		Payload:  map[string]any{"note": args.Note},
	}); err != nil {
		return "", err
	}
	return "note recorded", nil
}

func (t *Toolkit) fileTicket(ctx context.Context, ticketID, actor string, input json.RawMessage) (string, error) {
	var args struct {
		Objective       string `json:"objective"`
		SuccessCriteria string `json:"success_criteria"`
		Priority        string `json:"priority"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad file_ticket input: %w", err)
	}

	priority := types.PriorityMedium
	if args.Priority != "" {
		p, err := types.ParsePriority(args.Priority)
		if err != nil {
			return "", err
		}
		priority = p
	}

	result, err := t.store.CreateTicket(ctx, &types.Ticket{
		Objective:       args.Objective,
		SuccessCriteria: args.SuccessCriteria,
		Priority:        priority,
		SourceKind:      types.SourceAnomaly,
		Context:         map[string]any{"discovered_while_working": ticketID},
	}, actor)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("filed ticket %s", result.TicketID), nil
}
