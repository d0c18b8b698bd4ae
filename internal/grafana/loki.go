package grafana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Loki pushes and queries logs via the Loki HTTP API.
type Loki struct {
	baseURL  string
	username string
	token    string
	client   *http.Client
}

// NewLoki builds a client for the given endpoint.
func NewLoki(baseURL, username, token string) *Loki {
	return &Loki{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// LogEntry is one line from a Loki stream.
type LogEntry struct {
	Timestamp time.Time
	Line      string
	Labels    map[string]string
}

type lokiQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// Query runs a LogQL range query over [start, end] and returns entries
// newest first.
func (l *Loki) Query(ctx context.Context, logql string, start, end time.Time, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{
		"query":     {logql},
		"limit":     {strconv.Itoa(limit)},
		"start":     {strconv.FormatInt(start.UnixNano(), 10)},
		"end":       {strconv.FormatInt(end.UnixNano(), 10)},
		"direction": {"backward"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		l.baseURL+"/loki/api/v1/query_range?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build loki request: %w", err)
	}
	l.auth(req)

	httpResp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loki request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loki returned %d", httpResp.StatusCode)
	}

	var resp lokiQueryResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode loki response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("loki query failed with status %s", resp.Status)
	}

	var entries []LogEntry
	for _, stream := range resp.Data.Result {
		for _, v := range stream.Values {
			ns, err := strconv.ParseInt(v[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse loki timestamp %q: %w", v[0], err)
			}
			entries = append(entries, LogEntry{
				Timestamp: time.Unix(0, ns).UTC(),
				Line:      v[1],
				Labels:    stream.Stream,
			})
		}
	}
	return entries, nil
}

// Push writes one log line with the given labels.
func (l *Loki) Push(ctx context.Context, labels map[string]string, line string) error {
	body := map[string]any{
		"streams": []map[string]any{{
			"stream": labels,
			"values": [][2]string{{strconv.FormatInt(time.Now().UnixNano(), 10), line}},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode loki push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		l.baseURL+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build loki push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	l.auth(req)

	httpResp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("loki push failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusNoContent && httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("loki push returned %d", httpResp.StatusCode)
	}
	return nil
}

// CheckHealth probes the readiness endpoint.
func (l *Loki) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/ready", nil)
	if err != nil {
		return fmt.Errorf("failed to build loki request: %w", err)
	}
	l.auth(req)

	httpResp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("loki unreachable: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("loki not ready: %d", httpResp.StatusCode)
	}
	return nil
}

func (l *Loki) auth(req *http.Request) {
	if l.username != "" || l.token != "" {
		req.SetBasicAuth(l.username, l.token)
	}
}
