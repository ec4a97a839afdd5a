package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/barnum167/nanodc-monitor/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSwitcher records ChangeSite calls for assertions.
type fakeSwitcher struct {
	mu   sync.Mutex
	site string
	err  error
}

func (f *fakeSwitcher) ChangeSite(ctx context.Context, site string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.site = site
	return nil
}

func (f *fakeSwitcher) CurrentSite() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.site
}

// newTestServer wires a server over a seeded store and returns both.
func newTestServer(sites SiteSwitcher) (*Server, *store.MemoryStore) {
	st := store.NewMemoryStore()
	st.UpdateSnapshot(store.Snapshot{
		Site: "bc02",
		Cycle: store.CycleInfo{
			Site:   "bc02",
			Cycle:  1,
			Status: store.CycleOK,
		},
		Slots: []store.SlotStatus{
			{
				ImageType:   "lonovo_post",
				SlotIndex:   0,
				DisplayName: "Filecoin Miner",
				SiteMapped:  true,
				Node:        &store.NodeStatus{Name: "BC02 Filecoin Miner Node"},
			},
			{ImageType: "logo", SlotIndex: 0},
		},
	})
	return NewServer(st, sites, 0, testLogger()), st
}

// TestServer_Healthz verifies the liveness probe.
func TestServer_Healthz(t *testing.T) {
	srv, _ := newTestServer(&fakeSwitcher{site: "bc02"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected healthz body: %s", rec.Body.String())
	}
}

// TestServer_Slots verifies the snapshot endpoint returns the stored display
// state with slot order preserved.
func TestServer_Slots(t *testing.T) {
	srv, _ := newTestServer(&fakeSwitcher{site: "bc02"})

	req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Site != "bc02" {
		t.Errorf("expected site bc02, got %q", snap.Site)
	}
	if len(snap.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(snap.Slots))
	}
	if snap.Slots[0].Node == nil || snap.Slots[0].Node.Name != "BC02 Filecoin Miner Node" {
		t.Error("expected resolved node in first slot")
	}
	if snap.Slots[1].SiteMapped {
		t.Error("expected logo slot to be not site-mapped")
	}
}

// TestServer_Cycle verifies the cycle endpoint returns only the cycle
// metadata.
func TestServer_Cycle(t *testing.T) {
	srv, st := newTestServer(&fakeSwitcher{site: "bc02"})

	msg := "dial tcp: connection refused"
	st.UpdateCycle(store.CycleInfo{
		Site:        "bc02",
		Cycle:       2,
		Status:      store.CycleError,
		FailureKind: "network",
		Error:       &msg,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/cycle", nil)
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	var info store.CycleInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if info.Status != store.CycleError {
		t.Errorf("expected error status, got %q", info.Status)
	}
	if info.FailureKind != "network" {
		t.Errorf("expected network failure kind, got %q", info.FailureKind)
	}
	if info.Error == nil || *info.Error != msg {
		t.Error("expected failure message in cycle metadata")
	}
}

// TestServer_ChangeSite verifies the site-switch endpoint forwards to the
// switcher and echoes the now-current site.
func TestServer_ChangeSite(t *testing.T) {
	switcher := &fakeSwitcher{site: "bc02"}
	srv, _ := newTestServer(switcher)

	req := httptest.NewRequest(http.MethodPut, "/api/site", strings.NewReader(`{"site":"bc01"}`))
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if switcher.CurrentSite() != "bc01" {
		t.Errorf("expected switcher called with bc01, got %q", switcher.CurrentSite())
	}
	if !strings.Contains(rec.Body.String(), `"bc01"`) {
		t.Errorf("expected response to echo new site, got %s", rec.Body.String())
	}
}

// TestServer_ChangeSiteBadRequest verifies validation of the site-switch
// body.
func TestServer_ChangeSiteBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"empty site", `{"site":""}`},
		{"whitespace site", `{"site":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeSwitcher{site: "bc02"})

			req := httptest.NewRequest(http.MethodPut, "/api/site", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

// TestServer_ChangeSiteFailure verifies that a switcher error maps to a 500
// without leaking internals.
func TestServer_ChangeSiteFailure(t *testing.T) {
	switcher := &fakeSwitcher{site: "bc02", err: errors.New("controller is closed")}
	srv, _ := newTestServer(switcher)

	req := httptest.NewRequest(http.MethodPut, "/api/site", strings.NewReader(`{"site":"bc01"}`))
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

// TestServer_Events verifies the SSE stream delivers the current snapshot
// immediately and pushes subsequent updates.
func TestServer_Events(t *testing.T) {
	srv, st := newTestServer(&fakeSwitcher{site: "bc02"})

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("failed to connect to SSE endpoint: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)

	readEvent := func() store.Snapshot {
		t.Helper()
		type result struct {
			snap store.Snapshot
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					ch <- result{err: err}
					return
				}
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var snap store.Snapshot
				err = json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &snap)
				ch <- result{snap: snap, err: err}
				return
			}
		}()
		select {
		case r := <-ch:
			if r.err != nil {
				t.Fatalf("failed to read SSE event: %v", r.err)
			}
			return r.snap
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for SSE event")
			return store.Snapshot{}
		}
	}

	// initial snapshot arrives without any update happening
	first := readEvent()
	if first.Site != "bc02" {
		t.Errorf("expected initial snapshot for bc02, got %q", first.Site)
	}

	// an update is pushed to the open stream
	st.UpdateSnapshot(store.Snapshot{Site: "bc01", Cycle: store.CycleInfo{Site: "bc01", Cycle: 1, Status: store.CycleOK}})
	second := readEvent()
	if second.Site != "bc01" {
		t.Errorf("expected pushed snapshot for bc01, got %q", second.Site)
	}
}

// TestServer_StartPortConflict verifies that binding errors surface
// synchronously from Start rather than later from the serve goroutine.
func TestServer_StartPortConflict(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, _ := newTestServer(&fakeSwitcher{})
	srv.port = port
	if err := srv.Start(ctx); err == nil {
		t.Error("expected Start to fail on an occupied port")
	}
}
