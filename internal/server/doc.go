// Package server exposes the display state over HTTP for presentation
// adapters.
//
// It serves the current resolved-slot snapshot as JSON, streams snapshot
// updates via Server-Sent Events, and accepts site-switch requests. The
// server is a data boundary only: rendering, theming and layout belong to
// the consuming presentation layer.
package server
