// Package curve builds the daily step curve: a randomized daily target, a
// per-minute interpolation of the anchor schedule with negative jitter, and
// point queries against the result.
//
// Everything here is pure apart from the injected random source.
package curve
