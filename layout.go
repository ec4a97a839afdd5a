package nanodc

import "fmt"

// SlotDescriptor identifies one fixed visual position on the display wall.
//
// The set of descriptors for a deployment is static configuration, declared
// up front via [BuildLayout]; it is never derived from API data.
type SlotDescriptor struct {
	// ImageType is the slot's visual family, which also selects the
	// matching semantics applied during resolution.
	ImageType ImageType

	// SlotIndex is the slot's position within its image type, starting
	// at zero.
	SlotIndex int
}

// SlotRange declares a run of consecutive slots of one image type.
//
// Ranges are the declarative form of a layout: "six post-wall slots then
// three NAS slots" expands to nine concrete descriptors with per-type
// zero-based indexes.
type SlotRange struct {
	ImageType ImageType
	Count     int
}

// BuildLayout expands slot ranges into the fixed ordered descriptor list.
//
// Descriptors are emitted in declaration order, with slot indexes counted
// per image type, so a type may appear in several ranges and continue its
// numbering. Returns an error for an empty declaration, an unknown image
// type, or a non-positive count.
//
// Example:
//
//	layout, err := nanodc.BuildLayout(
//	    nanodc.SlotRange{ImageType: nanodc.ImageTypeLonovoPost, Count: 6},
//	    nanodc.SlotRange{ImageType: nanodc.ImageTypeNAS, Count: 3},
//	)
func BuildLayout(ranges ...SlotRange) ([]SlotDescriptor, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("layout requires at least one slot range")
	}

	next := make(map[ImageType]int)
	var layout []SlotDescriptor
	for i, r := range ranges {
		if !knownImageTypes[r.ImageType] {
			return nil, fmt.Errorf("ranges[%d]: unknown image type %q", i, r.ImageType)
		}
		if r.Count < 1 {
			return nil, fmt.Errorf("ranges[%d] (%s): count must be positive, got %d", i, r.ImageType, r.Count)
		}
		for n := 0; n < r.Count; n++ {
			layout = append(layout, SlotDescriptor{ImageType: r.ImageType, SlotIndex: next[r.ImageType]})
			next[r.ImageType]++
		}
	}
	return layout, nil
}

// DefaultLayout returns the reference deployment's slot sequence: six
// post-wall slots, three NAS slots, and one logo slot.
func DefaultLayout() []SlotDescriptor {
	layout, err := BuildLayout(
		SlotRange{ImageType: ImageTypeLonovoPost, Count: 6},
		SlotRange{ImageType: ImageTypeNAS, Count: 3},
		SlotRange{ImageType: ImageTypeLogo, Count: 1},
	)
	if err != nil {
		// the built-in declaration is static and always valid
		panic("nanodc: invalid default layout: " + err.Error())
	}
	return layout
}

// ResolvedSlot is the per-slot output of one mapping pass, the unit consumed
// by presentation.
//
// A ResolvedSlot is created once per cycle per slot, handed off immediately,
// and never mutated afterwards.
type ResolvedSlot struct {
	// Descriptor identifies the visual position this result belongs to.
	Descriptor SlotDescriptor

	// DisplayName is the slot's caption. Populated from the site table
	// even when Node is nil, so a slot can show a label with no live
	// data. Empty for slots that are not site-mapped and got no default
	// resolution.
	DisplayName string

	// SiteMapped reports whether the active site's table contains a rule
	// for this slot. False means "not site-mapped", which is distinct
	// from "mapped but unresolved" (SiteMapped true, Node nil).
	SiteMapped bool

	// Node is the resolved node, or nil when the slot is unresolved.
	Node *Node
}

// DefaultResolver supplies non-site-specific resolution for slots absent
// from the active site's table. It returns the node to display, the caption,
// and whether a default resolution applies at all.
type DefaultResolver func(desc SlotDescriptor, catalog Catalog) (Node, string, bool)

// ResolveLayout performs one full mapping pass: every slot in the layout is
// resolved against the catalog, in layout order.
//
// Site-mapped slots resolve through the mapper's rule table. Slots that are
// not site-mapped fall back to the optional DefaultResolver; with no
// resolver they come back absent with an empty caption. The returned slice
// is freshly allocated each call.
func (m Mapper) ResolveLayout(layout []SlotDescriptor, catalog Catalog, fallback DefaultResolver) []ResolvedSlot {
	resolved := make([]ResolvedSlot, len(layout))
	for i, desc := range layout {
		rs := ResolvedSlot{Descriptor: desc}

		if m.IsMapped(desc.ImageType, desc.SlotIndex) {
			rs.SiteMapped = true
			rs.DisplayName, _ = m.DisplayName(desc.ImageType, desc.SlotIndex)
			if node, ok := m.Resolve(desc.ImageType, desc.SlotIndex, catalog); ok {
				n := node
				rs.Node = &n
			}
		} else if fallback != nil {
			if node, name, ok := fallback(desc, catalog); ok {
				n := node
				rs.Node = &n
				rs.DisplayName = name
			}
		}

		resolved[i] = rs
	}
	return resolved
}
