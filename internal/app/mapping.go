package app

import (
	"fmt"
	"strings"
	"time"

	"stepsync/internal/config"
	"stepsync/internal/opsserver"
	"stepsync/internal/storage"
	"stepsync/internal/telegram"
	logx "stepsync/pkg/logx"
)

func mapLogConfig(cfg *config.Config, verbose bool) logx.Config {
	lc := cfg.Logging
	level := lc.Level
	if verbose {
		level = "debug"
	}
	return logx.Config{
		Level:   level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled:    lc.File.Enabled,
			Path:       lc.File.Path,
			MaxSizeMB:  lc.File.MaxSizeMB,
			MaxBackups: lc.File.MaxBackups,
			MaxAgeDays: lc.File.MaxAgeDays,
			Compress:   lc.File.Compress,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			ChatID:     lc.Telegram.ChatID,
			ThreadID:   lc.Telegram.ThreadID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

// newLogSender builds the Telegram client once at startup. A token added by a
// later reload needs a restart.
func newLogSender(cfg *config.Config) (logx.Sender, error) {
	tok := strings.TrimSpace(cfg.Logging.Telegram.Token)
	if tok == "" {
		return nil, nil
	}
	s, err := telegram.New(telegram.Config{Token: tok, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("telegram log sink: %w", err)
	}
	return s, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			path = "./data/stepsync"
		}
		return storage.Config{Driver: driver, Path: path, Retain: sc.Retain}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, config.Errorf("storage.path", "required when storage.driver=%s", driver)
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy, Retain: sc.Retain}, true, nil
	default:
		return storage.Config{}, false, config.Errorf("storage.driver", "unknown driver %q", sc.Driver)
	}
}

func mapOpsConfig(cfg *config.Config) (opsserver.Config, error) {
	oc := cfg.Ops
	read, err := config.ParseDurationOrDefault("ops.read_timeout", oc.ReadTimeout, 10*time.Second)
	if err != nil {
		return opsserver.Config{}, err
	}
	// pprof profiles stream for up to 30s by default.
	write, err := config.ParseDurationOrDefault("ops.write_timeout", oc.WriteTimeout, 40*time.Second)
	if err != nil {
		return opsserver.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("ops.idle_timeout", oc.IdleTimeout, 60*time.Second)
	if err != nil {
		return opsserver.Config{}, err
	}
	return opsserver.Config{
		Enabled:       oc.Enabled,
		Addr:          strings.TrimSpace(oc.Addr),
		Token:         strings.TrimSpace(oc.Token),
		AllowInsecure: oc.AllowInsecure,
		Pprof:         oc.Pprof,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}
