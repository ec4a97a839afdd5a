package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// siteCatalogs are the node names the mock reports per site. They exercise
// the built-in rule tables: keyword combinations on the post wall, unit
// numbers on the NAS column.
var siteCatalogs = map[string][]string{
	"bc01": {
		"BC01 Filecoin Miner Node",
		"BC01 Post Worker 1",
		"BC01 NAS1",
		"BC01 NAS2",
	},
	"bc02": {
		"BC02 Supra Worker",
		"BC02 3080Ti Rig A",
		"BC02 Post Worker 1",
		"BC02 Filecoin Miner Node",
		"BC02 NAS1",
		"BC02 NAS2",
		"BC02 NAS3",
	},
}

// StartMockTelemetryServer runs a fake NanoDC telemetry API on addr.
//
// It serves GET /api/v1/sites/{site}/nodes with a static catalog per site
// plus randomized metrics, so the monitor's resolution and SSE stream have
// something to chew on. Unknown sites get an empty catalog. Call this in a
// goroutine before starting the monitor.
func StartMockTelemetryServer(addr string) {
	http.HandleFunc("/api/v1/sites/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// api/v1/sites/{site}/nodes
		if len(parts) != 5 || parts[4] != "nodes" {
			http.NotFound(w, r)
			return
		}
		site := parts[3]

		// simulate small latency variance
		time.Sleep(time.Duration(30+rand.Intn(120)) * time.Millisecond)

		names := siteCatalogs[site]
		nodes := make([]map[string]any, 0, len(names))
		for _, name := range names {
			nodes = append(nodes, map[string]any{
				"node_name": name,
				"metrics": map[string]any{
					"cpu_percent":  rand.Intn(100),
					"temperature":  40 + rand.Intn(35),
					"uptime_hours": rand.Intn(2000),
				},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"nodes": nodes}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
