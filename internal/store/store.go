package store

import "time"

// CycleStatus values for [CycleInfo.Status].
const (
	// CycleOK marks a successful cycle.
	CycleOK = "ok"

	// CycleError marks a failed cycle; FailureKind says how it failed.
	CycleError = "error"
)

// NodeStatus is the storage representation of a resolved node, optimized
// for JSON serialization on the REST API and SSE stream.
type NodeStatus struct {
	// Name is the node name as reported by the telemetry API.
	Name string `json:"name"`

	// Metrics carries the node's metric fields untouched.
	Metrics map[string]any `json:"metrics,omitempty"`
}

// SlotStatus is one display slot's current state.
type SlotStatus struct {
	// ImageType is the slot's visual family.
	ImageType string `json:"image_type"`

	// SlotIndex is the slot's position within its image type.
	SlotIndex int `json:"slot_index"`

	// DisplayName is the slot's caption; may be set even when Node is
	// nil so the slot shows a label with no live data.
	DisplayName string `json:"display_name,omitempty"`

	// SiteMapped reports whether the active site's rule table covers
	// this slot.
	SiteMapped bool `json:"site_mapped"`

	// Node is the resolved node, or nil when the slot is unresolved.
	Node *NodeStatus `json:"node"`
}

// CycleInfo is the metadata of the most recent refresh cycle.
type CycleInfo struct {
	// Site is the site identifier the cycle was fetched for.
	Site string `json:"site"`

	// Cycle is the cycle counter within the current session.
	Cycle uint64 `json:"cycle"`

	// Status is [CycleOK] or [CycleError].
	Status string `json:"status"`

	// FailureKind classifies a failed cycle ("network", "malformed",
	// "timeout"); empty on success.
	FailureKind string `json:"failure_kind,omitempty"`

	// Error is the failure message, nil on success.
	Error *string `json:"error"`

	// CheckedAt is when the cycle completed.
	CheckedAt time.Time `json:"checked_at"`

	// LatencyMs is the fetch latency in milliseconds.
	LatencyMs int64 `json:"latency_ms"`
}

// Snapshot is the full display state: the ordered slot list from the last
// mapping pass and the last cycle's metadata. Slot order is the layout
// order and is preserved exactly.
type Snapshot struct {
	// Site is the currently selected site identifier.
	Site string `json:"site"`

	// Cycle is the most recent cycle's metadata. Its Status may report
	// an error while Slots still holds the last successful resolution.
	Cycle CycleInfo `json:"cycle"`

	// Slots is the ordered resolved-slot list.
	Slots []SlotStatus `json:"slots"`
}

// Store defines storage and subscription for display snapshots.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// UpdateSnapshot replaces the whole snapshot (slots and cycle
	// metadata) and notifies all subscribers.
	UpdateSnapshot(snap Snapshot)

	// UpdateCycle replaces only the cycle metadata, retaining the
	// current slots, and notifies all subscribers. Used for failed
	// cycles that keep the last-known resolution on screen.
	UpdateCycle(info CycleInfo)

	// Snapshot returns a copy of the current snapshot. Modifying the
	// returned value does not affect the store.
	Snapshot() Snapshot

	// Subscribe returns a channel that receives a snapshot copy on
	// every update. The channel is buffered; slow consumers may miss
	// updates. Caller must Unsubscribe when done.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes its channel. Safe
	// to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
