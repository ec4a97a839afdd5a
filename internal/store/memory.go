package store

import "sync"

// subscriberBuffer is the per-subscriber channel depth. Updates beyond a
// full buffer are dropped for that subscriber rather than blocking the
// refresh path.
const subscriberBuffer = 16

// MemoryStore is the in-memory [Store] implementation.
//
// A single snapshot is guarded by an RWMutex; subscribers receive copies
// over buffered channels with non-blocking sends.
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot Snapshot

	subMu       sync.RWMutex
	subscribers map[chan Snapshot]struct{}
}

// NewMemoryStore creates an empty [MemoryStore], immediately ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// UpdateSnapshot replaces the stored snapshot and notifies subscribers.
func (m *MemoryStore) UpdateSnapshot(snap Snapshot) {
	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	m.notifySubscribers(copySnapshot(snap))
}

// UpdateCycle replaces only the cycle metadata and notifies subscribers.
// The slot list from the last successful resolution is retained.
func (m *MemoryStore) UpdateCycle(info CycleInfo) {
	m.mu.Lock()
	m.snapshot.Site = info.Site
	m.snapshot.Cycle = info
	snap := m.snapshot
	m.mu.Unlock()

	m.notifySubscribers(copySnapshot(snap))
}

// Snapshot returns a copy of the current snapshot.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySnapshot(m.snapshot)
}

// Subscribe creates a new subscription.
//
// The returned channel has a small buffer; if it fills, updates are dropped
// for this subscriber. Caller must call [MemoryStore.Unsubscribe] when done
// to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all subscribers, non-blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the update
		}
	}
}

// copySnapshot deep-copies the slot slice and node pointers so callers can
// hold a snapshot across later updates.
func copySnapshot(snap Snapshot) Snapshot {
	cp := snap
	if snap.Cycle.Error != nil {
		msg := *snap.Cycle.Error
		cp.Cycle.Error = &msg
	}
	if snap.Slots != nil {
		cp.Slots = make([]SlotStatus, len(snap.Slots))
		for i, slot := range snap.Slots {
			sc := slot
			if slot.Node != nil {
				node := *slot.Node
				if node.Metrics != nil {
					metrics := make(map[string]any, len(node.Metrics))
					for k, v := range node.Metrics {
						metrics[k] = v
					}
					node.Metrics = metrics
				}
				sc.Node = &node
			}
			cp.Slots[i] = sc
		}
	}
	return cp
}
