package nanodc

import (
	"fmt"
	"sort"
)

// ImageType identifies the visual family of a display slot.
//
// The image type determines which matching semantics apply when resolving a
// node onto a slot: the LONOVO_POST family supports per-rule AND/OR keyword
// combinators, the NAS family uses a single keyword containment check, and
// any other image type never resolves a node regardless of table contents.
type ImageType string

const (
	// ImageTypeLonovoPost is the compute-device family (miners, GPU and
	// post workers). Rules for this family may combine keywords with
	// [MatchAll] or [MatchAny].
	ImageTypeLonovoPost ImageType = "lonovo_post"

	// ImageTypeNAS is the storage family. Rules for this family use a
	// single keyword containment check; only the first keyword of a rule
	// is consulted.
	ImageTypeNAS ImageType = "nas"

	// ImageTypeLogo is a decorative slot family. Logo slots never carry
	// node data and resolution always reports absent for them.
	ImageTypeLogo ImageType = "logo"
)

// knownImageTypes lists the image types accepted by layout and rule
// validation.
var knownImageTypes = map[ImageType]bool{
	ImageTypeLonovoPost: true,
	ImageTypeNAS:        true,
	ImageTypeLogo:       true,
}

// MatchMode selects how a rule's keywords are combined for the LONOVO_POST
// family.
type MatchMode string

const (
	// MatchAll requires every keyword to appear in the node name
	// (case-insensitive). This is the default when a rule does not
	// specify a mode.
	MatchAll MatchMode = "all"

	// MatchAny requires at least one keyword to appear in the node name
	// (case-insensitive).
	MatchAny MatchMode = "any"
)

// Rule describes how one display slot selects a node from a catalog.
//
// The boolean combinator is part of each rule, not a global policy: one slot
// may require both "Filecoin" and "Miner" while its neighbour accepts either
// "3080Ti" or "GPU Worker". Matching is case-insensitive substring
// containment throughout; there is no regular-expression or fuzzy matching.
type Rule struct {
	// Keywords are the substrings tested against node names.
	Keywords []string

	// Mode combines the keywords for LONOVO_POST rules. Empty is treated
	// as [MatchAll]. Ignored by the NAS family, which only consults the
	// first keyword.
	Mode MatchMode

	// DisplayName is the label shown for the slot, whether or not a node
	// resolves. It lets a slot present a caption with no live data.
	DisplayName string
}

// validate reports whether the rule is well formed for the given family.
func (r Rule) validate(img ImageType) error {
	if len(r.Keywords) == 0 {
		return fmt.Errorf("rule requires at least one keyword")
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			return fmt.Errorf("rule keywords must be non-empty")
		}
	}
	switch r.Mode {
	case "", MatchAll, MatchAny:
	default:
		return fmt.Errorf("unknown match mode %q", r.Mode)
	}
	if img == ImageTypeNAS && len(r.Keywords) > 1 {
		return fmt.Errorf("nas rules take a single keyword, got %d", len(r.Keywords))
	}
	return nil
}

// SiteTable maps display slots to rules for one deployment site.
//
// The outer key is the slot's image type, the inner key its slot index.
// A slot index absent from the table is "not site-mapped", which is distinct
// from "mapped but unresolved": unmapped slots fall back to default
// resolution (if any), mapped slots show their rule's display name even when
// no node matches.
//
// Tables are read-only after initialisation and may be freely shared across
// refresh cycles.
type SiteTable map[ImageType]map[int]Rule

// Validate checks every rule in the table.
func (t SiteTable) Validate() error {
	for img, slots := range t {
		if !knownImageTypes[img] {
			return fmt.Errorf("unknown image type %q", img)
		}
		for idx, rule := range slots {
			if idx < 0 {
				return fmt.Errorf("%s[%d]: slot index must not be negative", img, idx)
			}
			if err := rule.validate(img); err != nil {
				return fmt.Errorf("%s[%d]: %w", img, idx, err)
			}
		}
	}
	return nil
}

// RuleSet holds the mapping tables for all known sites, keyed by site
// identifier. Adding a deployment site is a data change — a new entry here or
// in the YAML config — never a code change.
type RuleSet map[string]SiteTable

// Validate checks every site table in the set.
func (rs RuleSet) Validate() error {
	// deterministic error order for tests and logs
	sites := make([]string, 0, len(rs))
	for site := range rs {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	for _, site := range sites {
		if site == "" {
			return fmt.Errorf("site identifier must be non-empty")
		}
		if err := rs[site].Validate(); err != nil {
			return fmt.Errorf("site %q: %w", site, err)
		}
	}
	return nil
}

// Merge overlays other onto rs, replacing whole site tables, and returns the
// combined set. Neither input is modified. Used when a config file extends or
// overrides the built-in tables.
func (rs RuleSet) Merge(other RuleSet) RuleSet {
	merged := make(RuleSet, len(rs)+len(other))
	for site, table := range rs {
		merged[site] = table
	}
	for site, table := range other {
		merged[site] = table
	}
	return merged
}

// DefaultRuleSet returns the built-in mapping tables for the reference
// deployments.
//
// The BC02 table is the reference site: post-wall slot 4 is the Filecoin
// miner (both "Filecoin" and "Miner" must appear in the node name), slot 1
// accepts either GPU worker naming convention, and the NAS column maps by
// unit number. Slots absent from the table (3 and 5 on the post wall) are
// intentionally not site-mapped.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		"bc01": {
			ImageTypeLonovoPost: {
				0: {Keywords: []string{"Filecoin", "Miner"}, Mode: MatchAll, DisplayName: "Filecoin Miner"},
				1: {Keywords: []string{"Post", "Worker"}, Mode: MatchAll, DisplayName: "Post Worker"},
			},
			ImageTypeNAS: {
				0: {Keywords: []string{"NAS1"}, DisplayName: "NAS Storage 1"},
				1: {Keywords: []string{"NAS2"}, DisplayName: "NAS Storage 2"},
			},
		},
		"bc02": {
			ImageTypeLonovoPost: {
				0: {Keywords: []string{"Supra"}, Mode: MatchAll, DisplayName: "Supra Worker"},
				1: {Keywords: []string{"3080Ti", "GPU Worker"}, Mode: MatchAny, DisplayName: "GPU Worker"},
				2: {Keywords: []string{"Post", "Worker"}, Mode: MatchAll, DisplayName: "Post Worker"},
				4: {Keywords: []string{"Filecoin", "Miner"}, Mode: MatchAll, DisplayName: "Filecoin Miner"},
			},
			ImageTypeNAS: {
				0: {Keywords: []string{"NAS1"}, DisplayName: "NAS Storage 1"},
				1: {Keywords: []string{"NAS2"}, DisplayName: "NAS Storage 2"},
				2: {Keywords: []string{"NAS3"}, DisplayName: "NAS Storage 3"},
			},
		},
	}
}
