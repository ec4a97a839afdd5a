package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned by [Controller.Start] when a session is
// active for a different site identifier. It is a caller-contract violation:
// switch sites with [Controller.ChangeSite] or stop explicitly first.
var ErrAlreadyRunning = errors.New("refresh session already running")

// CycleResult is the outcome of one fetch cycle, delivered exactly once per
// cycle to the controller's results channel.
//
// Every result is tagged with the site it was fetched for and the session
// generation that produced it. Subscribers must discard results whose site
// does not match the currently selected one; the generation tag makes a
// late-arriving result from a previous session identifiable without any
// timing-based quiescence delay.
type CycleResult struct {
	// Site is the site identifier this cycle was fetched for.
	Site string

	// SessionID correlates all cycles of one session in logs.
	SessionID string

	// Generation is the session's monotonic generation number. A new
	// session (after Stop/ChangeSite) always carries a higher generation.
	Generation uint64

	// Cycle counts cycles within the session, starting at 1.
	Cycle uint64

	// Nodes is the fetched catalog. Nil when the cycle failed.
	Nodes []Node

	// FetchedAt is when the cycle completed.
	FetchedAt time.Time

	// Latency is the fetch duration.
	Latency time.Duration

	// Err is the fetch error, nil on success.
	Err error

	// Kind classifies Err; [FailureNone] on success.
	Kind FailureKind
}

// session is the live state of one controller run.
type session struct {
	site       string
	id         string
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// Controller owns the periodic-fetch lifecycle for at most one active site
// at a time.
//
// State machine: Idle → (Start) → Running → (Stop) → Idle. Start with the
// same site while running is a no-op; Start with a different site fails with
// [ErrAlreadyRunning]; ChangeSite composes Stop then Start. Start, Stop and
// ChangeSite are serialized against each other and safe for concurrent use
// from any goroutine.
//
// Each session performs an immediate first fetch, then fetches on a fixed
// interval measured from the end of the previous cycle. Fetch failures never
// stop the loop; only Stop, ChangeSite or parent-context cancellation do.
//
// Results are delivered on an unbuffered channel, so cycle N is observed by
// the consumer before cycle N+1's fetch begins.
type Controller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger
	results  chan CycleResult

	// lifecycleMu serializes Start/Stop/ChangeSite; only one state
	// transition is in flight at a time.
	lifecycleMu sync.Mutex

	// mu guards session and generation.
	mu         sync.Mutex
	session    *session
	generation uint64

	// parent is the context supplied to the first Start; ChangeSite
	// derives new sessions from it.
	parent context.Context

	closeOnce sync.Once
	closed    chan struct{}
}

// NewController creates a [Controller].
//
// fetcher performs the per-cycle request. interval is the pause between the
// end of one cycle and the start of the next. The controller is Idle until
// [Controller.Start] is called.
func NewController(fetcher Fetcher, interval time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		results:  make(chan CycleResult),
		closed:   make(chan struct{}),
	}
}

// Results returns the receive-only channel of cycle results.
//
// The channel is unbuffered: the refresh loop blocks on delivery, which
// guarantees a cycle is observed before the next fetch begins. The channel
// stays open across Stop/Start pairs and closes only on [Controller.Close].
func (c *Controller) Results() <-chan CycleResult {
	return c.results
}

// Start begins a refresh session for the given site.
//
// If a session is already running for the same site, Start is an idempotent
// no-op. If one is running for a different site, Start fails with
// [ErrAlreadyRunning] — that misuse is surfaced immediately, never
// swallowed. Otherwise a session is created and its loop performs an
// immediate first fetch without waiting for the first tick.
//
// The session is bound to ctx: cancelling it ends the session as if Stop had
// been called. A nil ctx uses context.Background().
func (c *Controller) Start(ctx context.Context, site string) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	return c.startLocked(ctx, site)
}

// startLocked creates and launches a session. Caller holds lifecycleMu.
func (c *Controller) startLocked(ctx context.Context, site string) error {
	if site == "" {
		return errors.New("site identifier cannot be empty")
	}
	select {
	case <-c.closed:
		return errors.New("controller is closed")
	default:
	}

	c.mu.Lock()
	if c.session != nil {
		active := c.session.site
		c.mu.Unlock()
		if active == site {
			return nil
		}
		return fmt.Errorf("%w: active site %q, requested %q", ErrAlreadyRunning, active, site)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if c.parent == nil {
		c.parent = ctx
	}

	sctx, cancel := context.WithCancel(ctx)
	c.generation++
	s := &session{
		site:       site,
		id:         uuid.NewString(),
		generation: c.generation,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	c.session = s
	c.mu.Unlock()

	go c.run(sctx, s)
	return nil
}

// Stop ends the active session, if any.
//
// Stop cancels the session context, which wakes a pending inter-cycle timer
// immediately and signals an in-flight fetch to give up, then blocks until
// the session goroutine has observably ended. Stop on an Idle controller is
// a no-op. Safe to call from any goroutine, any number of times.
func (c *Controller) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.stopLocked()
}

// stopLocked cancels and waits out the active session. Caller holds
// lifecycleMu.
func (c *Controller) stopLocked() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return
	}

	s.cancel()
	<-s.done
	c.logger.Info("refresh session stopped",
		"site", s.site,
		"session_id", s.id,
		"generation", s.generation,
	)
}

// ChangeSite switches the controller to a new site: the active session (if
// any) is stopped and a fresh one started.
//
// The new session carries a higher generation, so any late-arriving result
// from the old session is distinguishable by tag — no quiescence delay is
// needed. ChangeSite to the already-active site is a no-op. The new session
// derives from the context given to the first Start (or Background if the
// controller was Idle).
func (c *Controller) ChangeSite(site string) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if c.session != nil && c.session.site == site {
		c.mu.Unlock()
		return nil
	}
	parent := c.parent
	c.mu.Unlock()

	c.stopLocked()
	return c.startLocked(parent, site)
}

// CurrentSite returns the active session's site identifier, or "" when Idle.
func (c *Controller) CurrentSite() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.site
}

// Close stops any active session and closes the results channel. The
// controller cannot be restarted afterwards. Safe to call multiple times.
func (c *Controller) Close() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.stopLocked()
	c.closeOnce.Do(func() {
		close(c.closed)
		close(c.results)
	})
}

// run is the session loop: fetch, deliver, wait, repeat.
func (c *Controller) run(ctx context.Context, s *session) {
	defer close(s.done)

	c.logger.Info("refresh session started",
		"site", s.site,
		"session_id", s.id,
		"generation", s.generation,
		"interval", c.interval.String(),
	)

	var cycle uint64
	for {
		cycle++
		result := c.runCycle(ctx, s, cycle)

		// a cancelled session delivers nothing: its result would carry
		// a stale generation anyway
		if ctx.Err() != nil {
			return
		}

		select {
		case c.results <- result:
		case <-ctx.Done():
			return
		}

		// interval measured from the end of the cycle, so slow fetches
		// never pile up
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runCycle performs one fetch and builds its tagged result. Failures are
// recovered locally: the result carries the error and the loop reschedules
// at the normal interval.
func (c *Controller) runCycle(ctx context.Context, s *session, cycle uint64) CycleResult {
	start := time.Now()
	nodes, err := c.fetcher.FetchNodes(ctx, s.site)

	result := CycleResult{
		Site:       s.site,
		SessionID:  s.id,
		Generation: s.generation,
		Cycle:      cycle,
		Nodes:      nodes,
		FetchedAt:  time.Now(),
		Latency:    time.Since(start),
	}

	if err != nil {
		result.Nodes = nil
		result.Err = err
		result.Kind = Classify(err)
		c.logger.Warn("refresh cycle failed",
			"site", s.site,
			"session_id", s.id,
			"cycle", cycle,
			"kind", string(result.Kind),
			"error", err.Error(),
		)
		return result
	}

	c.logger.Debug("refresh cycle completed",
		"site", s.site,
		"session_id", s.id,
		"cycle", cycle,
		"nodes", len(nodes),
		"latency_ms", result.Latency.Milliseconds(),
	)
	return result
}
