// Package grafana holds thin HTTP clients for the Grafana Cloud stack:
// Prometheus for metrics and Loki for logs. Both speak the upstream query
// APIs with basic auth, so they work against self-hosted instances too.
package grafana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Prometheus queries metrics via the Prometheus HTTP API.
type Prometheus struct {
	baseURL  string
	username string
	token    string
	client   *http.Client
}

// NewPrometheus builds a client for the given endpoint. username and token
// form the basic-auth pair; both may be empty for unauthenticated servers.
func NewPrometheus(baseURL, username, token string) *Prometheus {
	return &Prometheus{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// QueryResponse is the envelope every Prometheus API call returns.
type QueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"data"`
	Error string `json:"error"`
}

// Query runs an instant PromQL query and returns the raw response.
func (p *Prometheus) Query(ctx context.Context, promql string) (*QueryResponse, error) {
	params := url.Values{"query": {promql}}
	return p.get(ctx, "/api/v1/query", params)
}

// QueryRange runs a range PromQL query.
func (p *Prometheus) QueryRange(ctx context.Context, promql string, start, end time.Time, step string) (*QueryResponse, error) {
	params := url.Values{
		"query": {promql},
		"start": {strconv.FormatInt(start.Unix(), 10)},
		"end":   {strconv.FormatInt(end.Unix(), 10)},
		"step":  {step},
	}
	return p.get(ctx, "/api/v1/query_range", params)
}

// MetricValue runs an instant query and returns the first sample's value.
// The second return reports whether any data came back at all; no data is
// not an error.
func (p *Prometheus) MetricValue(ctx context.Context, promql string) (float64, bool, error) {
	resp, err := p.Query(ctx, promql)
	if err != nil {
		return 0, false, err
	}
	if resp.Status != "success" {
		return 0, false, fmt.Errorf("prometheus query failed: %s", resp.Error)
	}
	if resp.Data.ResultType != "vector" || len(resp.Data.Result) == 0 {
		return 0, false, nil
	}

	// Vector samples arrive as [timestamp, "value"].
	sample := resp.Data.Result[0].Value
	if len(sample) != 2 {
		return 0, false, fmt.Errorf("malformed sample in prometheus response")
	}
	var raw string
	if err := json.Unmarshal(sample[1], &raw); err != nil {
		return 0, false, fmt.Errorf("failed to decode sample value: %w", err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse sample value %q: %w", raw, err)
	}
	return v, true, nil
}

// CheckHealth reports whether the endpoint answers a trivial query.
func (p *Prometheus) CheckHealth(ctx context.Context) error {
	resp, err := p.Query(ctx, "up")
	if err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("prometheus unhealthy: %s", resp.Error)
	}
	return nil
}

func (p *Prometheus) get(ctx context.Context, path string, params url.Values) (*QueryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build prometheus request: %w", err)
	}
	if p.username != "" || p.token != "" {
		req.SetBasicAuth(p.username, p.token)
	}

	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prometheus request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prometheus returned %d for %s", httpResp.StatusCode, path)
	}

	var resp QueryResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode prometheus response: %w", err)
	}
	return &resp, nil
}
