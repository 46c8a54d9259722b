package config

import (
	"reflect"
	"strings"

	logx "stepsync/pkg/logx"
)

// Change summarizes the difference between two configs.
type Change struct {
	// Applied lists sections that take effect on reload (logging, ops).
	Applied []string
	// RestartRequired lists sections that are fixed for the process lifetime.
	RestartRequired []string
	// Attrs are safe structured log fields; secrets are reported as set/unset.
	Attrs []logx.Field
}

func (c Change) Empty() bool { return len(c.Applied) == 0 && len(c.RestartRequired) == 0 }

// SummarizeChange compares oldCfg and newCfg section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		ch.Applied = append(ch.Applied, "logging")
		ch.Attrs = append(ch.Attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
		if oldCfg.Logging.Telegram.Token != newCfg.Logging.Telegram.Token {
			// The bot client is built once at startup.
			ch.RestartRequired = append(ch.RestartRequired, "logging.telegram.token")
		}
	}

	if !reflect.DeepEqual(oldCfg.Ops, newCfg.Ops) {
		ch.Applied = append(ch.Applied, "ops")
		ch.Attrs = append(ch.Attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", strings.TrimSpace(newCfg.Ops.Addr)),
			logx.Bool("ops.token_set", strings.TrimSpace(newCfg.Ops.Token) != ""),
			logx.Bool("ops.pprof", newCfg.Ops.Pprof),
		)
	}

	if !reflect.DeepEqual(oldCfg.Target, newCfg.Target) {
		ch.RestartRequired = append(ch.RestartRequired, "target")
	}
	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		ch.RestartRequired = append(ch.RestartRequired, "schedule")
	}
	if oldCfg.Actuator != newCfg.Actuator {
		ch.RestartRequired = append(ch.RestartRequired, "actuator")
	}
	if oldCfg.Credentials != newCfg.Credentials {
		ch.RestartRequired = append(ch.RestartRequired, "credentials")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		ch.RestartRequired = append(ch.RestartRequired, "storage")
	}
	return ch
}
