package config

import (
	"math"
	"net/url"
	"strings"
	"time"

	"stepsync/internal/actuator"
	"stepsync/internal/curve"
	"stepsync/internal/scheduler"
)

const (
	DefaultBaseTarget = 7000
	DefaultDelta      = 0.2
)

// Settings are the validated, typed scheduler parameters. They are fixed for
// the life of the process.
type Settings struct {
	BaseTarget      int
	Delta           float64
	Interval        time.Duration
	Location        *time.Location
	Schedule        curve.ScheduleTable
	ActuatorURL     string
	ActuatorTimeout time.Duration
}

// Resolve validates cfg and converts it into Settings. Every failure is a
// *ConfigError.
func (c *Config) Resolve() (Settings, error) {
	s := Settings{
		BaseTarget:  DefaultBaseTarget,
		Delta:       DefaultDelta,
		ActuatorURL: actuator.DefaultURL,
	}

	if c.Target.Base != nil {
		s.BaseTarget = *c.Target.Base
	}
	if s.BaseTarget < 0 || s.BaseTarget > actuator.MaxStep {
		return Settings{}, Errorf("target.base", "must be in [0, %d], got %d", actuator.MaxStep, s.BaseTarget)
	}
	if c.Target.Delta != nil {
		s.Delta = *c.Target.Delta
	}
	if math.IsNaN(s.Delta) || s.Delta < 0 || s.Delta >= 1 {
		return Settings{}, Errorf("target.delta", "must be in [0, 1), got %v", s.Delta)
	}

	iv, err := scheduler.ParseInterval(c.Schedule.Interval)
	if err != nil {
		return Settings{}, &ConfigError{Field: "schedule.interval", Err: err}
	}
	s.Interval = iv

	s.Location = time.Local
	if tz := strings.TrimSpace(c.Schedule.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Settings{}, &ConfigError{Field: "schedule.timezone", Err: err}
		}
		s.Location = loc
	}

	s.Schedule = curve.DefaultSchedule()
	if len(c.Schedule.Anchors) > 0 {
		anchors := make([]curve.Anchor, 0, len(c.Schedule.Anchors))
		for _, a := range c.Schedule.Anchors {
			m, err := curve.ParseClock(a.At)
			if err != nil {
				return Settings{}, &ConfigError{Field: "schedule.anchors", Err: err}
			}
			anchors = append(anchors, curve.Anchor{Minute: m, Fraction: a.Fraction})
		}
		tbl, err := curve.NewScheduleTable(anchors)
		if err != nil {
			return Settings{}, &ConfigError{Field: "schedule.anchors", Err: err}
		}
		s.Schedule = tbl
	}

	if u := strings.TrimSpace(c.Actuator.URL); u != "" {
		pu, err := url.Parse(u)
		if err != nil || (pu.Scheme != "http" && pu.Scheme != "https") || pu.Host == "" {
			return Settings{}, Errorf("actuator.url", "must be an http(s) URL, got %q", u)
		}
		s.ActuatorURL = u
	}
	s.ActuatorTimeout, err = ParseDurationOrDefault("actuator.timeout", c.Actuator.Timeout, actuator.DefaultTimeout)
	if err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Validate checks the sections that are applied at runtime (logging, ops,
// storage) in addition to Resolve.
func (c *Config) Validate() error {
	if _, err := c.Resolve(); err != nil {
		return err
	}
	if err := nonNegative("logging.telegram.rate_per_sec", c.Logging.Telegram.RatePerSec); err != nil {
		return err
	}
	if c.Logging.Telegram.Enabled {
		if strings.TrimSpace(c.Logging.Telegram.Token) == "" {
			return Errorf("logging.telegram.token", "required when telegram logging is enabled")
		}
		if c.Logging.Telegram.ChatID == 0 {
			return Errorf("logging.telegram.chat_id", "required when telegram logging is enabled")
		}
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return Errorf("storage.driver", "unknown driver %q", c.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
		if err := nonNegative("storage.retain", c.Storage.Retain); err != nil {
			return err
		}
	}
	for path, raw := range map[string]string{
		"ops.read_timeout":  c.Ops.ReadTimeout,
		"ops.write_timeout": c.Ops.WriteTimeout,
		"ops.idle_timeout":  c.Ops.IdleTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	return nil
}
