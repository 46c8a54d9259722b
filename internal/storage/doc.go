// Package storage keeps the push history: one record per actuator attempt,
// in a JSON Lines file or a SQLite database. Curves are never stored.
package storage
