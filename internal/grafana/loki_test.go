package grafana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLokiQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/query_range" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("query") != `{app="api"} |= "error"` {
			t.Errorf("query = %q", q.Get("query"))
		}
		if q.Get("direction") != "backward" {
			t.Errorf("direction = %q", q.Get("direction"))
		}
		fmt.Fprint(w, `{
			"status": "success",
			"data": {
				"resultType": "streams",
				"result": [{
					"stream": {"app": "api", "level": "error"},
					"values": [
						["1700000001000000000", "second line"],
						["1700000000000000000", "first line"]
					]
				}]
			}
		}`)
	}))
	t.Cleanup(srv.Close)

	loki := NewLoki(srv.URL, "", "")
	entries, err := loki.Query(context.Background(), `{app="api"} |= "error"`,
		time.Now().Add(-time.Hour), time.Now(), 50)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Line != "second line" {
		t.Errorf("first entry = %q", entries[0].Line)
	}
	if entries[0].Labels["level"] != "error" {
		t.Errorf("labels = %v", entries[0].Labels)
	}
	if entries[0].Timestamp != time.Unix(0, 1700000001000000000).UTC() {
		t.Errorf("timestamp = %v", entries[0].Timestamp)
	}
}

func TestLokiQueryHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	loki := NewLoki(srv.URL, "", "")
	_, err := loki.Query(context.Background(), "{", time.Now().Add(-time.Hour), time.Now(), 10)
	if err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestLokiPush(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("push body not json: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	loki := NewLoki(srv.URL, "", "")
	err := loki.Push(context.Background(), map[string]string{"app": "harness"}, "agent started")
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	streams, ok := body["streams"].([]any)
	if !ok || len(streams) != 1 {
		t.Fatalf("streams = %v", body["streams"])
	}
}

func TestLokiCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ready" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, "ready")
	}))
	t.Cleanup(srv.Close)

	loki := NewLoki(srv.URL, "", "")
	if err := loki.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth failed: %v", err)
	}
}
