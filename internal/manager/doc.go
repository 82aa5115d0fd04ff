// Package manager gates all access to the single loaded inference context.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, status, interrupt, release.
//   - key.go: LoadKey and options-to-key resolution (catalog + role detection).
//   - ensure.go: reload-on-demand policy (single-entry cache keyed by LoadKey).
//   - generate.go: serialized generation and the per-run callback sink.
//   - errors.go: error taxonomy and Is* helpers for HTTP mapping.
//   - metrics.go: prometheus counters and histograms.
//
// Concurrency contract: one long-held mutex covers load plus generate; the
// task tracker's short-held map lock is only ever acquired from inside the
// callback sink, never the other way around, so the lock order is fixed.
//
// External packages should use public methods only (New, EnsureLoaded,
// Generate, Interrupt, Status, Close). Internal types are subject to change.
package manager
