// Package store provides storage for the latest resolved display snapshot
// with a publish-subscribe mechanism for real-time updates.
//
// The store holds exactly one snapshot — the ordered slot list produced by
// the most recent mapping pass, plus the metadata of the most recent cycle.
// Failed cycles may update the metadata without touching the slots, which is
// how the display shows a stale indicator while the refresh loop keeps
// retrying.
//
// The pub/sub mechanism feeds Server-Sent Events in the server package.
// Implementations must be safe for concurrent access.
package store
