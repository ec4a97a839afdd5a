package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/barnum167/nanodc-monitor/internal/store"
)

const (
	// sseWriteTimeout bounds a single SSE write so a slow or disconnected
	// client cannot leak the handler goroutine. Must be <= the shutdown
	// timeout to allow clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// apiTimeout bounds the plain JSON handlers. The SSE route is exempt:
	// it is long-lived on purpose.
	apiTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown after context cancel.
	shutdownTimeout = 5 * time.Second
)

// SiteSwitcher is the server's view of the monitor: read the selected site
// and request a switch. Implemented by nanodc.Monitor.
type SiteSwitcher interface {
	// ChangeSite switches the refresh loop to a new site identifier.
	ChangeSite(ctx context.Context, site string) error

	// CurrentSite returns the currently selected site identifier.
	CurrentSite() string
}

// Server handles HTTP requests for the display state API.
//
// Routes:
//   - GET /healthz: liveness probe
//   - GET /api/slots: the ordered resolved-slot snapshot as JSON
//   - GET /api/cycle: the last refresh cycle's metadata as JSON
//   - GET /api/events: Server-Sent Events stream of snapshot updates
//   - PUT /api/site: switch the monitored site
//
// The server shuts down gracefully when the context given to
// [Server.Start] is cancelled.
type Server struct {
	store      store.Store
	sites      SiteSwitcher
	port       int
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates an HTTP [Server]. It is not started until
// [Server.Start] is called.
func NewServer(st store.Store, sites SiteSwitcher, port int, logger *slog.Logger) *Server {
	return &Server{
		store:  st,
		sites:  sites,
		port:   port,
		logger: logger,
	}
}

// handler builds the chi router. Split out from Start so tests can exercise
// routes without binding a port.
func (s *Server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(api chi.Router) {
		api.With(middleware.Timeout(apiTimeout)).Get("/slots", s.handleSlots)
		api.With(middleware.Timeout(apiTimeout)).Get("/cycle", s.handleCycle)
		api.With(middleware.Timeout(apiTimeout)).Put("/site", s.handleChangeSite)
		// SSE stays outside the timeout middleware; it is long-lived
		api.Get("/events", s.handleEvents)
	})

	return r
}

// Start begins serving in a background goroutine.
//
// Start is non-blocking and returns after the listener is bound, so port
// conflicts surface synchronously. The server runs until ctx is cancelled,
// then shuts down gracefully with a bounded timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.handler(),
		// request contexts derive from the server context, so SSE
		// handlers unblock on shutdown as well as client disconnect
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleHealthz is the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleSlots returns the current snapshot (slots plus cycle metadata).
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("failed to encode slots response", "error", err)
	}
}

// handleCycle returns only the last cycle's metadata.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(snap.Cycle); err != nil {
		s.logger.Error("failed to encode cycle response", "error", err)
	}
}

// siteRequest is the PUT /api/site body.
type siteRequest struct {
	Site string `json:"site"`
}

// handleChangeSite switches the monitored site.
func (s *Server) handleChangeSite(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Site = strings.TrimSpace(req.Site)
	if req.Site == "" {
		http.Error(w, "site is required", http.StatusBadRequest)
		return
	}

	if err := s.sites.ChangeSite(r.Context(), req.Site); err != nil {
		s.logger.Error("site change failed", "site", req.Site, "error", err)
		http.Error(w, "site change failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("site changed", "site", req.Site)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(siteRequest{Site: s.sites.CurrentSite()})
}

// handleEvents streams snapshot updates via Server-Sent Events.
//
// Writes carry a deadline so a blocked client cannot prevent the handler
// from observing shutdown or channel closure.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by the underlying
				// connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send the current state first so a new client renders immediately
	if data, err := json.Marshal(s.store.Snapshot()); err == nil {
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown via
			// BaseContext
			return
		}
	}
}
