package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	logx "stepsync/pkg/logx"
)

// Store is the persistence API used by the scheduler and the CLI.
type Store interface {
	AppendPush(ctx context.Context, r PushRecord) error
	// RecentPushes returns up to limit records, newest first.
	RecentPushes(ctx context.Context, limit int) ([]PushRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func normalize(r PushRecord) PushRecord {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	if r.Date == "" {
		r.Date = r.At.Format(time.DateOnly)
	}
	return r
}
