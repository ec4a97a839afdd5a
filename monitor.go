package nanodc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/barnum167/nanodc-monitor/internal/refresh"
	"github.com/barnum167/nanodc-monitor/internal/server"
	"github.com/barnum167/nanodc-monitor/internal/store"
)

const (
	// defaultRefreshInterval is the pause between refresh cycles, measured
	// from the end of one cycle to the start of the next.
	defaultRefreshInterval = 20 * time.Second

	// defaultRequestTimeout bounds each telemetry fetch.
	defaultRequestTimeout = 10 * time.Second

	// defaultPort is the display-state API server port.
	defaultPort = 8080
)

// Monitor is the main orchestrator of the device monitoring pipeline.
//
// It owns the refresh loop that polls the telemetry API for the selected
// site, resolves each fetched catalog onto the fixed slot layout through the
// site's rule table, stores the result, and serves it over HTTP. Create with
// [New], run with [Monitor.Start].
//
// All methods are safe for concurrent use.
type Monitor struct {
	layout          []SlotDescriptor
	rules           RuleSet
	defaultResolver DefaultResolver
	interval        time.Duration
	port            int
	logger          *slog.Logger
	callbacks       []func(CycleResult)

	ctrl  *refresh.Controller
	store *store.MemoryStore

	// client is the built-in HTTP fetcher, nil when a custom one was
	// injected. Kept so Start can release its connection pool on exit.
	client *refresh.Client

	// mu guards site, the single source of truth for the currently
	// selected site. It is written before the controller switches, so a
	// result tagged with the old site can never match.
	mu   sync.RWMutex
	site string

	startOnce sync.Once
}

// New creates a [Monitor] with the given options.
//
// [WithSite] is required, as is a telemetry source: either [WithAPIBaseURL]
// for the built-in HTTP fetcher or [WithFetcher] for a custom one. Layout
// and rules default to [DefaultLayout] and [DefaultRuleSet].
//
// Example:
//
//	m, err := nanodc.New(
//	    nanodc.WithSite("bc01"),
//	    nanodc.WithAPIBaseURL("https://api.nanodc.example"),
//	    nanodc.WithRefreshInterval(20*time.Second),
//	)
func New(opts ...Option) (*Monitor, error) {
	cfg := &monConfig{
		refreshInterval: defaultRefreshInterval,
		requestTimeout:  defaultRequestTimeout,
		port:            defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.site == "" {
		return nil, errors.New("a site is required: use WithSite")
	}
	if cfg.fetcher == nil && cfg.apiBaseURL == "" {
		return nil, errors.New("a telemetry source is required: use WithAPIBaseURL or WithFetcher")
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.layout == nil {
		cfg.layout = DefaultLayout()
	}
	if cfg.rules == nil {
		cfg.rules = DefaultRuleSet()
	}

	m := &Monitor{
		layout:          cfg.layout,
		rules:           cfg.rules,
		defaultResolver: cfg.defaultResolver,
		interval:        cfg.refreshInterval,
		port:            cfg.port,
		logger:          cfg.logger,
		callbacks:       cfg.cycleCallbacks,
		store:           store.NewMemoryStore(),
		site:            cfg.site,
	}

	var fetcher refresh.Fetcher
	if cfg.fetcher != nil {
		fetcher = fetcherAdapter{inner: cfg.fetcher}
	} else {
		m.client = refresh.NewClient(cfg.apiBaseURL, cfg.requestTimeout, cfg.apiHeaders)
		fetcher = m.client
	}
	m.ctrl = refresh.NewController(fetcher, cfg.refreshInterval, cfg.logger)

	return m, nil
}

// Start runs the monitor until ctx is cancelled.
//
// It starts the refresh session for the configured site, the result-consumer
// loop and the HTTP server, then blocks. On cancellation everything shuts
// down gracefully; Start returns nil on a clean shutdown. A Monitor can be
// started once.
func (m *Monitor) Start(ctx context.Context) error {
	started := false
	m.startOnce.Do(func() { started = true })
	if !started {
		return errors.New("monitor already started")
	}

	m.logger.Info("starting monitor",
		"site", m.CurrentSite(),
		"interval", m.interval.String(),
		"port", m.port,
		"slots", len(m.layout),
	)

	if err := m.ctrl.Start(ctx, m.CurrentSite()); err != nil {
		return fmt.Errorf("failed to start refresh session: %w", err)
	}

	srv := server.NewServer(m.store, m, m.port, m.logger)
	if err := srv.Start(ctx); err != nil {
		m.ctrl.Close()
		return fmt.Errorf("failed to start http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// consumer: drains results until the controller closes the channel
	g.Go(func() error {
		for res := range m.ctrl.Results() {
			m.handleCycle(res)
		}
		return nil
	})

	// watcher: translates context cancellation into controller shutdown,
	// which in turn ends the consumer by closing the results channel
	g.Go(func() error {
		<-gctx.Done()
		m.ctrl.Close()
		if m.client != nil {
			m.client.Close()
		}
		return nil
	})

	err := g.Wait()
	m.logger.Info("monitor stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ChangeSite switches the monitor to a new site identifier.
//
// The selected site is updated first, then the refresh session is restarted,
// so a late result from the previous session is always discarded by the site
// tag. Switching to the already-selected site is a no-op.
func (m *Monitor) ChangeSite(ctx context.Context, site string) error {
	if site == "" {
		return errors.New("site identifier cannot be empty")
	}

	m.mu.Lock()
	if m.site == site {
		m.mu.Unlock()
		return nil
	}
	m.site = site
	m.mu.Unlock()

	return m.ctrl.ChangeSite(site)
}

// CurrentSite returns the currently selected site identifier.
func (m *Monitor) CurrentSite() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.site
}

// Snapshot returns a copy of the current display state.
func (m *Monitor) Snapshot() store.Snapshot {
	return m.store.Snapshot()
}

// handleCycle processes one refresh cycle: discard stale results, resolve the
// catalog onto the layout, persist, and notify callbacks.
func (m *Monitor) handleCycle(res refresh.CycleResult) {
	if res.Site != m.CurrentSite() {
		// late result from a previous session after a site switch
		m.logger.Debug("discarding stale cycle result",
			"result_site", res.Site,
			"current_site", m.CurrentSite(),
			"generation", res.Generation,
		)
		return
	}

	result := toPublicResult(res)

	switch result.Kind {
	case FailureNone, FailureMalformed:
		// malformed payloads resolve against an empty catalog so the
		// display reflects "no data" rather than stale slots
		mapper := NewMapper(m.rules[result.Site])
		resolved := mapper.ResolveLayout(m.layout, result.Catalog, m.defaultResolver)
		m.store.UpdateSnapshot(store.Snapshot{
			Site:  result.Site,
			Cycle: toCycleInfo(result),
			Slots: toSlotStatuses(resolved),
		})

	default:
		// network and timeout failures keep the last-known slots on
		// screen and surface only the cycle metadata
		m.store.UpdateCycle(toCycleInfo(result))
	}

	m.notifyCallbacks(result)
}

// notifyCallbacks invokes registered cycle callbacks in order, recovering
// panics so a misbehaving callback cannot take down the refresh loop.
func (m *Monitor) notifyCallbacks(result CycleResult) {
	for i, cb := range m.callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("cycle callback panicked",
						"callback", i,
						"correlation_id", uuid.NewString(),
						"site", result.Site,
						"cycle", result.Cycle,
						"panic", fmt.Sprint(r),
					)
				}
			}()
			cb(result)
		}()
	}
}

// fetcherAdapter bridges the public [Fetcher] to the internal poller types.
type fetcherAdapter struct {
	inner Fetcher
}

func (a fetcherAdapter) FetchNodes(ctx context.Context, site string) ([]refresh.Node, error) {
	catalog, err := a.inner.FetchNodes(ctx, site)
	if err != nil {
		return nil, err
	}
	nodes := make([]refresh.Node, len(catalog))
	for i, n := range catalog {
		nodes[i] = refresh.Node{Name: n.Name, Metrics: n.Metrics}
	}
	return nodes, nil
}

// toPublicResult converts an internal cycle result to the public type.
func toPublicResult(res refresh.CycleResult) CycleResult {
	out := CycleResult{
		Site:       res.Site,
		SessionID:  res.SessionID,
		Generation: res.Generation,
		Cycle:      res.Cycle,
		FetchedAt:  res.FetchedAt,
		Latency:    res.Latency,
		Kind:       FailureKind(res.Kind),
		Err:        res.Err,
	}
	if res.Nodes != nil {
		out.Catalog = make(Catalog, len(res.Nodes))
		for i, n := range res.Nodes {
			out.Catalog[i] = Node{Name: n.Name, Metrics: n.Metrics}
		}
	}
	return out
}

// toCycleInfo converts a cycle result to its storage metadata form.
func toCycleInfo(result CycleResult) store.CycleInfo {
	info := store.CycleInfo{
		Site:      result.Site,
		Cycle:     result.Cycle,
		Status:    store.CycleOK,
		CheckedAt: result.FetchedAt,
		LatencyMs: result.Latency.Milliseconds(),
	}
	if result.Err != nil {
		info.Status = store.CycleError
		info.FailureKind = string(result.Kind)
		msg := result.Err.Error()
		info.Error = &msg
	}
	return info
}

// toSlotStatuses converts resolved slots to their storage form, preserving
// layout order.
func toSlotStatuses(resolved []ResolvedSlot) []store.SlotStatus {
	slots := make([]store.SlotStatus, len(resolved))
	for i, rs := range resolved {
		ss := store.SlotStatus{
			ImageType:   string(rs.Descriptor.ImageType),
			SlotIndex:   rs.Descriptor.SlotIndex,
			DisplayName: rs.DisplayName,
			SiteMapped:  rs.SiteMapped,
		}
		if rs.Node != nil {
			ss.Node = &store.NodeStatus{
				Name:    rs.Node.Name,
				Metrics: copyMetrics(rs.Node.Metrics),
			}
		}
		slots[i] = ss
	}
	return slots
}
