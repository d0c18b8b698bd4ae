package grafana

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func promServer(t *testing.T, handler http.HandlerFunc) *Prometheus {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPrometheus(srv.URL, "", "")
}

func vectorResponse(value string) string {
	return fmt.Sprintf(`{
		"status": "success",
		"data": {
			"resultType": "vector",
			"result": [{"metric": {"job": "api"}, "value": [1700000000, %q]}]
		}
	}`, value)
}

func TestMetricValue(t *testing.T) {
	p := promServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "up" {
			t.Errorf("query = %q", got)
		}
		fmt.Fprint(w, vectorResponse("0.9975"))
	})

	v, ok, err := p.MetricValue(context.Background(), "up")
	if err != nil {
		t.Fatalf("MetricValue failed: %v", err)
	}
	if !ok {
		t.Fatal("expected data")
	}
	if v != 0.9975 {
		t.Errorf("value = %v, want 0.9975", v)
	}
}

func TestMetricValueNoData(t *testing.T) {
	p := promServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "success", "data": {"resultType": "vector", "result": []}}`)
	})

	_, ok, err := p.MetricValue(context.Background(), "absent_metric")
	if err != nil {
		t.Fatalf("MetricValue failed: %v", err)
	}
	if ok {
		t.Error("expected no data")
	}
}

func TestMetricValueQueryError(t *testing.T) {
	p := promServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "error", "error": "parse error at char 3"}`)
	})

	_, _, err := p.MetricValue(context.Background(), "up{")
	if err == nil {
		t.Error("expected error for failed query status")
	}
}

func TestMetricValueHTTPError(t *testing.T) {
	p := promServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, _, err := p.MetricValue(context.Background(), "up")
	if err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestBasicAuthHeader(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		fmt.Fprint(w, vectorResponse("1"))
	}))
	t.Cleanup(srv.Close)

	p := NewPrometheus(srv.URL, "123456", "glc_token")
	if _, _, err := p.MetricValue(context.Background(), "up"); err != nil {
		t.Fatalf("MetricValue failed: %v", err)
	}
	if gotUser != "123456" || gotPass != "glc_token" {
		t.Errorf("auth = %q/%q", gotUser, gotPass)
	}
}

func TestCheckHealth(t *testing.T) {
	p := promServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, vectorResponse("1"))
	})
	if err := p.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth failed: %v", err)
	}
}
