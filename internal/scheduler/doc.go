// Package scheduler runs the drift-corrected polling loop: one tick every
// interval, curve rebuilt on date change, unchanged values not re-sent and
// failed values retried on the next tick.
package scheduler
