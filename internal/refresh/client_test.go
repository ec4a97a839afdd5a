package refresh

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestClient_FetchNodes verifies that a well-formed telemetry response is
// parsed into the node catalog in API order.
func TestClient_FetchNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sites/bc02/nodes" {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"nodes":[
			{"node_name":"BC02 Filecoin Miner Node","metrics":{"cpu_percent":42}},
			{"node_name":"BC02 NAS1"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	defer client.Close()

	nodes, err := client.FetchNodes(context.Background(), "bc02")
	if err != nil {
		t.Fatalf("FetchNodes failed: %v", err)
	}

	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Name != "BC02 Filecoin Miner Node" {
		t.Errorf("expected first node in API order, got %q", nodes[0].Name)
	}
	if got := nodes[0].Metrics["cpu_percent"]; got != float64(42) {
		t.Errorf("expected cpu_percent metric 42, got %v", got)
	}
	if nodes[1].Metrics != nil {
		t.Errorf("expected nil metrics for node without a metrics bag, got %v", nodes[1].Metrics)
	}
}

// TestClient_SendsHeaders verifies that configured headers accompany every
// request.
func TestClient_SendsHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"nodes":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, map[string]string{"Authorization": "Bearer token123"})
	defer client.Close()

	if _, err := client.FetchNodes(context.Background(), "bc01"); err != nil {
		t.Fatalf("FetchNodes failed: %v", err)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("expected Authorization header to be sent, got %q", gotAuth)
	}
}

// TestClient_MalformedJSON verifies that an unparseable payload is a typed
// malformed failure, distinguishable via errors.Is and Classify.
func TestClient_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nodes": [{`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	defer client.Close()

	_, err := client.FetchNodes(context.Background(), "bc01")
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if kind := Classify(err); kind != FailureMalformed {
		t.Errorf("expected FailureMalformed, got %q", kind)
	}
}

// TestClient_MissingNodeName verifies that a schema violation (a node without
// a name) classifies as malformed rather than being silently dropped.
func TestClient_MissingNodeName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nodes":[{"node_name":""}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	defer client.Close()

	_, err := client.FetchNodes(context.Background(), "bc01")
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for missing node_name, got %v", err)
	}
}

// TestClient_HTTPError verifies that a non-200 status classifies as a
// network failure.
func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	defer client.Close()

	_, err := client.FetchNodes(context.Background(), "bc01")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if kind := Classify(err); kind != FailureNetwork {
		t.Errorf("expected FailureNetwork, got %q", kind)
	}
}

// TestClient_Timeout verifies that a fetch exceeding the configured bound
// classifies as a timeout failure.
func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"nodes":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond, nil)
	defer client.Close()

	_, err := client.FetchNodes(context.Background(), "bc01")
	if err == nil {
		t.Fatal("expected error for slow server")
	}
	if kind := Classify(err); kind != FailureTimeout {
		t.Errorf("expected FailureTimeout, got %q", kind)
	}
}

// TestClient_ConnectionRefused verifies that a connection failure classifies
// as a network failure.
func TestClient_ConnectionRefused(t *testing.T) {
	// bind and immediately close to get a port nothing listens on
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := NewClient(addr, time.Second, nil)
	defer client.Close()

	_, err := client.FetchNodes(context.Background(), "bc01")
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	if kind := Classify(err); kind != FailureNetwork {
		t.Errorf("expected FailureNetwork, got %q", kind)
	}
}

// TestClassify covers the error-to-kind mapping directly, including the nil
// case.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil error", nil, FailureNone},
		{"malformed", ErrMalformed, FailureMalformed},
		{"deadline", context.DeadlineExceeded, FailureTimeout},
		{"generic", errors.New("connection reset"), FailureNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
