// Package opsserver serves /healthz, /metrics, /status and optional pprof
// on a local listener that follows config reloads.
package opsserver
