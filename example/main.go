package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barnum167/nanodc-monitor"
)

func main() {
	// start mock telemetry API (see mock_server.go)
	go StartMockTelemetryServer(":9999")
	time.Sleep(100 * time.Millisecond)

	m, err := nanodc.New(
		nanodc.WithSite("bc02"),
		nanodc.WithAPIBaseURL("http://localhost:9999"),
		nanodc.WithRefreshInterval(5*time.Second),
		nanodc.WithPort(8080),
		nanodc.WithCycleCallback(func(res nanodc.CycleResult) {
			if res.Err != nil {
				slog.Warn("cycle failed", "site", res.Site, "kind", res.Kind.String())
				return
			}
			slog.Info("cycle ok", "site", res.Site, "cycle", res.Cycle, "nodes", len(res.Catalog))
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   NanoDC Monitor Demo                                 ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Slots:  http://localhost:8080/api/slots             ║")
	fmt.Println("  ║   Stream: http://localhost:8080/api/events            ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Switch site:                                        ║")
	fmt.Println("  ║   curl -X PUT localhost:8080/api/site \\               ║")
	fmt.Println("  ║        -d '{\"site\":\"bc01\"}'                           ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}
}
