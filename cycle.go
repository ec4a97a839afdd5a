package nanodc

import "time"

// FailureKind classifies a failed refresh cycle.
//
// Using a string type allows easy JSON serialization and human-readable
// logging while keeping type safety through the defined constants.
type FailureKind string

const (
	// FailureNone marks a successful cycle.
	FailureNone FailureKind = ""

	// FailureNetwork indicates transient connectivity problems, including
	// unexpected HTTP statuses from the telemetry API.
	FailureNetwork FailureKind = "network"

	// FailureMalformed indicates the payload did not match the expected
	// schema. Malformed cycles complete with an empty catalog; the loop
	// keeps its schedule.
	FailureMalformed FailureKind = "malformed"

	// FailureTimeout indicates the fetch exceeded its bound.
	FailureTimeout FailureKind = "timeout"
)

// String returns the string representation of the failure kind.
// This implements the fmt.Stringer interface.
func (k FailureKind) String() string {
	return string(k)
}

// CycleResult is the outcome of one refresh cycle as delivered to cycle
// callbacks.
//
// CycleResult is immutable after creation. Every result is tagged with the
// site it was fetched for and the generation of the session that produced
// it; consumers comparing against the currently selected site can identify
// and discard late-arriving results from a previous session.
type CycleResult struct {
	// Site is the site identifier this cycle was fetched for.
	Site string

	// SessionID correlates all cycles of one refresh session in logs.
	SessionID string

	// Generation is the session's monotonic generation number; a session
	// started after a stop or site change always carries a higher one.
	Generation uint64

	// Cycle counts cycles within the session, starting at 1.
	Cycle uint64

	// Catalog is the fetched node list in API order. Nil when the cycle
	// failed.
	Catalog Catalog

	// FetchedAt is when the cycle completed.
	FetchedAt time.Time

	// Latency is the fetch duration.
	Latency time.Duration

	// Kind classifies Err; [FailureNone] on success.
	Kind FailureKind

	// Err is the fetch error, nil on success.
	Err error
}
