package config

import (
	"strings"
	"time"
)

// ParseDurationField parses an optional Go duration; empty means 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, Errorf(path, "invalid duration %q: %w", raw, err)
	}
	if d < 0 {
		return 0, Errorf(path, "duration must be >= 0")
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

func nonNegative(path string, v int) error {
	if v < 0 {
		return Errorf(path, "must be >= 0, got %d", v)
	}
	return nil
}
