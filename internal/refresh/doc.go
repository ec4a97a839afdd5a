// Package refresh implements the polling core: a cancellable, restartable
// periodic fetch loop keyed by a site identifier, and the HTTP client that
// performs one telemetry request per cycle.
//
// The package is internal; the public API is exposed through the root
// nanodc package, which converts between these types and its own.
//
// Concurrency model: one long-lived background goroutine per active refresh
// session. Fetches are sequential and never overlap; the interval between
// cycles is measured from the end of the previous cycle, so a slow fetch
// never causes pile-up. Cancellation is cooperative via context: both the
// in-flight request and the inter-cycle timer wake promptly on Stop.
package refresh
