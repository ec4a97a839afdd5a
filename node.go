package nanodc

// Node represents one monitored device as reported by the NanoDC telemetry API.
//
// Name is the only field the mapping layer inspects. Metrics carries whatever
// readings the API attached (temperatures, utilisation, storage counters) and
// is passed through to presentation untouched; the core treats it as opaque.
//
// Nodes are produced fresh on every fetch cycle. No identity is preserved
// across cycles beyond name-based re-matching.
type Node struct {
	// Name is the device name as reported by the API, e.g.
	// "BC02 Filecoin Miner Node". Matching rules test substrings of it.
	Name string `json:"name"`

	// Metrics holds the node's metric fields as decoded from the API
	// response. May be nil if the API reported none.
	Metrics map[string]any `json:"metrics,omitempty"`
}

// Catalog is the ordered list of nodes returned by one fetch cycle.
//
// Order is significant: slot resolution returns the first node whose name
// satisfies a rule, so the API's ordering is the tie-break when several nodes
// would match. A Catalog is owned by the cycle that produced it and is
// discarded after mapping.
type Catalog []Node

// copyMetrics returns a shallow copy of a metrics map, or nil if m is nil.
func copyMetrics(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
