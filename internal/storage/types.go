package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// DefaultRetain bounds how many push records a store keeps.
const DefaultRetain = 10000

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file, compacted to the newest Retain records
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retain      int           // 0 means DefaultRetain
}

func (c Config) retain() int {
	if c.Retain <= 0 {
		return DefaultRetain
	}
	return c.Retain
}

// PushRecord is one actuator attempt made by the scheduler or the set command.
// Keep it compact and schema-stable.
type PushRecord struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Date   string    `json:"date"`
	Step   int       `json:"step"`
	OK     bool      `json:"ok"`
	Status int       `json:"status"`
	Code   int       `json:"code"`
	Info   string    `json:"info,omitempty"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
}
