// Package nanodc monitors the devices of a NanoDC data-center site on a
// fixed display wall.
//
// A [Monitor] polls the NanoDC telemetry API for the selected site on a
// fixed interval, resolves the returned node catalog onto a static slot
// layout through per-site keyword rules, and exposes the resulting display
// state over HTTP as JSON and as a Server-Sent Events stream.
//
// The display is organized as an ordered sequence of slots declared with
// [BuildLayout]. Each slot belongs to an image type: post-wall slots
// ([ImageTypeLonovoPost]) match nodes by keyword combinations, NAS slots
// ([ImageTypeNAS]) by a single keyword, and decorative types such as
// [ImageTypeLogo] never carry node data. Which node lands on which slot is
// decided per site by a [SiteTable] of [Rule] values; [DefaultRuleSet]
// carries the built-in tables for the reference sites.
//
// Basic usage:
//
//	m, err := nanodc.New(
//	    nanodc.WithSite("bc01"),
//	    nanodc.WithAPIBaseURL("https://api.nanodc.example"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until the context is cancelled. The active site can be
// switched at runtime with [Monitor.ChangeSite] or through the HTTP API;
// results still in flight for the previous site are discarded, never
// rendered.
package nanodc
