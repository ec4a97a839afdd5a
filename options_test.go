package nanodc

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nopFetcher satisfies Fetcher with an empty catalog for construction tests.
type nopFetcher struct{}

func (nopFetcher) FetchNodes(ctx context.Context, site string) (Catalog, error) {
	return nil, nil
}

// TestNew_RequiresSite verifies that construction fails without a site.
func TestNew_RequiresSite(t *testing.T) {
	_, err := New(WithFetcher(nopFetcher{}))
	if err == nil || !strings.Contains(err.Error(), "site") {
		t.Errorf("expected site-required error, got %v", err)
	}
}

// TestNew_RequiresTelemetrySource verifies that construction fails without a
// base URL or custom fetcher.
func TestNew_RequiresTelemetrySource(t *testing.T) {
	_, err := New(WithSite("bc01"))
	if err == nil || !strings.Contains(err.Error(), "telemetry source") {
		t.Errorf("expected telemetry-source error, got %v", err)
	}
}

// TestNew_Defaults verifies that a minimal construction applies the default
// layout, rules, interval and port.
func TestNew_Defaults(t *testing.T) {
	m, err := New(
		WithSite("bc02"),
		WithFetcher(nopFetcher{}),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if m.CurrentSite() != "bc02" {
		t.Errorf("expected initial site bc02, got %q", m.CurrentSite())
	}
	if len(m.layout) != len(DefaultLayout()) {
		t.Errorf("expected default layout, got %d slots", len(m.layout))
	}
	if _, ok := m.rules["bc02"]; !ok {
		t.Error("expected default rule set")
	}
	if m.interval != defaultRefreshInterval {
		t.Errorf("expected default interval %s, got %s", defaultRefreshInterval, m.interval)
	}
	if m.port != defaultPort {
		t.Errorf("expected default port %d, got %d", defaultPort, m.port)
	}
}

// TestOptions_Validation covers option-level rejections.
func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty site", WithSite("")},
		{"empty layout", WithLayout(nil)},
		{"zero interval", WithRefreshInterval(0)},
		{"negative interval", WithRefreshInterval(-time.Second)},
		{"zero timeout", WithRequestTimeout(0)},
		{"bad url scheme", WithAPIBaseURL("ftp://host")},
		{"port too low", WithPort(0)},
		{"port too high", WithPort(70000)},
		{"nil logger", WithLogger(nil)},
		{"nil fetcher", WithFetcher(nil)},
		{"invalid rules", WithRules(RuleSet{"bc01": {ImageTypeNAS: {0: {}}}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &monConfig{}
			if err := tt.opt(cfg); err == nil {
				t.Error("expected option to reject invalid value")
			}
		})
	}
}

// TestWithCycleCallback_NilIgnored verifies that a nil callback registers
// nothing rather than failing.
func TestWithCycleCallback_NilIgnored(t *testing.T) {
	cfg := &monConfig{}
	if err := WithCycleCallback(nil)(cfg); err != nil {
		t.Errorf("nil callback must be ignored, got %v", err)
	}
	if len(cfg.cycleCallbacks) != 0 {
		t.Errorf("expected no callbacks registered, got %d", len(cfg.cycleCallbacks))
	}
}

// TestWithAPIHeaders_Copies verifies the header map is copied so later caller
// mutation cannot leak into requests.
func TestWithAPIHeaders_Copies(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer a"}
	cfg := &monConfig{}
	if err := WithAPIHeaders(headers)(cfg); err != nil {
		t.Fatalf("WithAPIHeaders failed: %v", err)
	}

	headers["Authorization"] = "Bearer b"
	if cfg.apiHeaders["Authorization"] != "Bearer a" {
		t.Error("expected header map to be copied at option time")
	}
}
