// Package segment runs image segmentation requests against pluggable
// providers and normalizes their output for display.
//
// # Orchestration
//
// Run takes an input raster and a Provider, checks its preconditions, calls
// the provider once and returns a Result: a 4-channel color raster plus a
// Legend mapping class labels to colors. Nothing is cached or retried and no
// state survives between calls, so concurrent Runs are independent.
//
// Every failure is typed:
//   - ErrProviderNotReady: nil provider, or one whose Ready reports false
//   - ErrInvalidInput: nil raster, non-positive size, wrong buffer length
//   - *FailedError (matches ErrSegmentationFailed): the provider returned an
//     error, panicked, or produced an unrenderable result
//
// No partial result is returned alongside an error.
//
// # Lifecycle
//
// Each request walks Idle -> Running -> {Succeeded, Failed}. Observers
// registered with WithObserver see every transition. Start wraps Run in a
// Task, a single-shot future with Wait, Done and Then continuations.
//
// # Providers
//
// Model variants are chosen when a provider is constructed. Register and
// Lookup maintain a process-wide table of named provider factories; the
// provider packages register themselves from init. Colorize turns a
// per-pixel class id map into a Result for providers whose models emit raw
// labels.
package segment
