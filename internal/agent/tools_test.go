package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harnesslab/harness/internal/grafana"
	"github.com/harnesslab/harness/internal/types"
)

func TestToolkitAddNoteRecordsEvents(t *testing.T) {
	store := newAgentStore(t)
	id := seedTicket(t, store, "investigate latency spike", types.PriorityHigh)
	tk := NewToolkit(store, nil, nil)

	out, err := tk.Execute(context.Background(), id, "agent-1", "add_note",
		json.RawMessage(`{"note":"p99 is 4s on the checkout path"}`))
	if err != nil {
		t.Fatalf("add_note: %v", err)
	}
	if out != "note recorded" {
		t.Errorf("result = %q", out)
	}

	events, err := store.ListEvents(context.Background(), id)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	// created + note_added + agent_action
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	action := events[len(events)-1]
	if action.Kind != types.EventAgentAction {
		t.Errorf("last event kind = %s, want %s", action.Kind, types.EventAgentAction)
	}
	if action.Actor != "agent-1" {
		t.Errorf("actor = %q", action.Actor)
	}
	if action.Payload["tool"] != "add_note" || action.Payload["success"] != true {
		t.Errorf("payload = %v", action.Payload)
	}
}

func TestToolkitAddNoteRejectsEmptyNote(t *testing.T) {
	store := newAgentStore(t)
	id := seedTicket(t, store, "something", types.PriorityMedium)
	tk := NewToolkit(store, nil, nil)

	if _, err := tk.Execute(context.Background(), id, "agent-1", "add_note",
		json.RawMessage(`{"note":"   "}`)); err == nil {
		t.Fatal("expected error for blank note")
	}

	// The failed call still leaves an agent_action audit record.
	events, err := store.ListEvents(context.Background(), id)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	last := events[len(events)-1]
	if last.Kind != types.EventAgentAction || last.Payload["success"] != false {
		t.Errorf("audit event = %+v", last)
	}
}

func TestToolkitFileTicket(t *testing.T) {
	store := newAgentStore(t)
	id := seedTicket(t, store, "root cause the OOM", types.PriorityHigh)
	tk := NewToolkit(store, nil, nil)

	out, err := tk.Execute(context.Background(), id, "agent-1", "file_ticket",
		json.RawMessage(`{"objective":"raise the memory limit","priority":"high"}`))
	if err != nil {
		t.Fatalf("file_ticket: %v", err)
	}
	if !strings.HasPrefix(out, "filed ticket ") {
		t.Fatalf("result = %q", out)
	}
	newID := strings.TrimPrefix(out, "filed ticket ")

	filed, err := store.GetTicket(context.Background(), newID)
	if err != nil {
		t.Fatalf("GetTicket(%s): %v", newID, err)
	}
	if filed.Priority != types.PriorityHigh {
		t.Errorf("priority = %s", filed.Priority)
	}
	if filed.SourceKind != types.SourceAnomaly {
		t.Errorf("source kind = %s", filed.SourceKind)
	}
	if filed.Context["discovered_while_working"] != id {
		t.Errorf("context = %v", filed.Context)
	}
}

func TestToolkitGetTicket(t *testing.T) {
	store := newAgentStore(t)
	id := seedTicket(t, store, "describe me", types.PriorityMedium)
	tk := NewToolkit(store, nil, nil)

	out, err := tk.Execute(context.Background(), id, "agent-1", "get_ticket",
		json.RawMessage(fmt.Sprintf(`{"ticket_id":%q}`, id)))
	if err != nil {
		t.Fatalf("get_ticket: %v", err)
	}
	if !strings.Contains(out, "describe me") {
		t.Errorf("result does not include the objective: %s", out)
	}
}

func TestToolkitQueryMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"0.42"]}]}}`)
	}))
	defer srv.Close()

	store := newAgentStore(t)
	id := seedTicket(t, store, "check the error rate", types.PriorityMedium)
	tk := NewToolkit(store, grafana.NewPrometheus(srv.URL, "", ""), nil)

	out, err := tk.Execute(context.Background(), id, "agent-1", "query_metrics",
		json.RawMessage(`{"query":"up"}`))
	if err != nil {
		t.Fatalf("query_metrics: %v", err)
	}
	if out != "0.42" {
		t.Errorf("result = %q, want 0.42", out)
	}
}

func TestToolkitUnconfiguredBackends(t *testing.T) {
	store := newAgentStore(t)
	id := seedTicket(t, store, "no backends", types.PriorityMedium)
	tk := NewToolkit(store, nil, nil)

	if _, err := tk.Execute(context.Background(), id, "agent-1", "query_metrics",
		json.RawMessage(`{"query":"up"}`)); err == nil {
		t.Error("expected error when prometheus is not configured")
	}
	if _, err := tk.Execute(context.Background(), id, "agent-1", "query_logs",
		json.RawMessage(`{"query":"{app=\"x\"}"}`)); err == nil {
		t.Error("expected error when loki is not configured")
	}
}

func TestToolkitUnknownTool(t *testing.T) {
	store := newAgentStore(t)
	id := seedTicket(t, store, "anything", types.PriorityMedium)
	tk := NewToolkit(store, nil, nil)

	if _, err := tk.Execute(context.Background(), id, "agent-1", "launch_missiles", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
