package nanodc

import "strings"

// NameMatcher is a predicate over node names.
//
// NameMatcher follows functional programming principles: it is a pure
// function where the same input always produces the same output. Matchers
// are built once from a rule's keywords and applied to every catalog entry
// in order; the first node that satisfies the matcher wins and remaining
// matches are ignored.
//
// All built-in matchers use case-insensitive substring containment. That is
// deliberately tolerant of naming drift from the telemetry source, at the
// cost of no ambiguity detection (two nodes that accidentally match).
type NameMatcher func(name string) bool

// MatchKeyword returns a [NameMatcher] that reports whether the node name
// contains the keyword (case-insensitive). This is the NAS-family predicate.
//
// Example:
//
//	m := nanodc.MatchKeyword("NAS1")
//	m("BC02 NAS1 Storage") // true
func MatchKeyword(keyword string) NameMatcher {
	lower := strings.ToLower(keyword)
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), lower)
	}
}

// MatchAllKeywords returns a [NameMatcher] requiring every keyword to appear
// in the node name (case-insensitive).
//
// Example:
//
//	m := nanodc.MatchAllKeywords("Filecoin", "Miner")
//	m("BC02 Filecoin Miner Node") // true
//	m("Filecoin Gateway")         // false
func MatchAllKeywords(keywords ...string) NameMatcher {
	lowered := lowerAll(keywords)
	return func(name string) bool {
		n := strings.ToLower(name)
		for _, kw := range lowered {
			if !strings.Contains(n, kw) {
				return false
			}
		}
		return len(lowered) > 0
	}
}

// MatchAnyKeywords returns a [NameMatcher] requiring at least one keyword to
// appear in the node name (case-insensitive).
//
// Example:
//
//	m := nanodc.MatchAnyKeywords("3080Ti", "GPU Worker")
//	m("Rig 3080ti #2") // true
func MatchAnyKeywords(keywords ...string) NameMatcher {
	lowered := lowerAll(keywords)
	return func(name string) bool {
		n := strings.ToLower(name)
		for _, kw := range lowered {
			if strings.Contains(n, kw) {
				return true
			}
		}
		return false
	}
}

// lowerAll lowercases a keyword list into a new slice.
func lowerAll(keywords []string) []string {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return lowered
}
