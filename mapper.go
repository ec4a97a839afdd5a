package nanodc

// Mapper resolves catalog nodes onto display slots using one site's mapping
// table.
//
// Mapper is a pure lookup structure: it holds no per-cycle state, performs no
// I/O, and is safe for concurrent use once constructed. A fresh catalog is
// passed to [Mapper.Resolve] on every cycle; nothing is retained between
// calls.
type Mapper struct {
	table SiteTable
}

// NewMapper creates a [Mapper] over one site's table.
//
// A nil table is valid and yields a mapper for which every slot is
// not site-mapped — the behaviour for a site identifier with no configured
// rules.
func NewMapper(table SiteTable) Mapper {
	return Mapper{table: table}
}

// Resolve returns the first catalog node whose name satisfies the rule for
// (imageType, slotIndex), in catalog order.
//
// The boolean result distinguishes resolution from absence. Resolve reports
// absent when:
//   - the slot is not present in the site table (not site-mapped — the
//     caller should fall back to default resolution, if any),
//   - the image type has no matching family (e.g. [ImageTypeLogo]), or
//   - the slot is mapped but no catalog node satisfies its rule.
//
// When several nodes satisfy the rule, the first one in catalog order wins
// and the rest are ignored; ambiguity is not reported.
func (m Mapper) Resolve(imageType ImageType, slotIndex int, catalog Catalog) (Node, bool) {
	rule, ok := m.rule(imageType, slotIndex)
	if !ok {
		return Node{}, false
	}

	match := familyMatcher(imageType, rule)
	if match == nil {
		// image type outside the rule-bearing families resolves absent
		// regardless of table contents
		return Node{}, false
	}

	for _, node := range catalog {
		if match(node.Name) {
			return node, true
		}
	}
	return Node{}, false
}

// DisplayName returns the label configured for (imageType, slotIndex).
//
// The lookup is independent of any catalog, so a slot can show its caption
// even when no node resolves. The boolean result is false for slots absent
// from the table.
func (m Mapper) DisplayName(imageType ImageType, slotIndex int) (string, bool) {
	rule, ok := m.rule(imageType, slotIndex)
	if !ok {
		return "", false
	}
	return rule.DisplayName, true
}

// IsMapped reports whether (imageType, slotIndex) is present in the site's
// table. Callers use it to decide between site-specific and default
// resolution.
func (m Mapper) IsMapped(imageType ImageType, slotIndex int) bool {
	_, ok := m.rule(imageType, slotIndex)
	return ok
}

// rule looks up the rule for a slot, if any.
func (m Mapper) rule(imageType ImageType, slotIndex int) (Rule, bool) {
	slots, ok := m.table[imageType]
	if !ok {
		return Rule{}, false
	}
	rule, ok := slots[slotIndex]
	return rule, ok
}

// familyMatcher builds the match predicate for a rule according to its
// family's semantics. Returns nil for image types outside the rule-bearing
// families.
func familyMatcher(imageType ImageType, rule Rule) NameMatcher {
	switch imageType {
	case ImageTypeLonovoPost:
		if rule.Mode == MatchAny {
			return MatchAnyKeywords(rule.Keywords...)
		}
		return MatchAllKeywords(rule.Keywords...)
	case ImageTypeNAS:
		// NAS rules are a single containment check; only the first
		// keyword is consulted
		if len(rule.Keywords) == 0 {
			return nil
		}
		return MatchKeyword(rule.Keywords[0])
	default:
		return nil
	}
}
