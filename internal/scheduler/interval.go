package scheduler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the fixed tick cadence.
const DefaultInterval = 16 * time.Minute

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseInterval parses a tick interval.
//
// Supported forms:
//   - Go duration: "16m", "1h30m"
//   - HH:MM: "00:16" (16 minutes), "02:30" (2 hours 30 minutes)
//   - cron fixed delay: "@every 16m"
//
// Optional prefixes "interval:" or "every:" are accepted. Calendar cron
// expressions are rejected: the loop needs a constant delay to resync against.
func ParseInterval(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefaultInterval, nil
	}

	low := strings.ToLower(s)
	for _, p := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, p) {
			s = strings.TrimSpace(s[len(p):])
			if s == "" {
				return 0, fmt.Errorf("interval required after %q", p)
			}
			break
		}
	}

	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return parseCronDelay(s)
	}
	if reHHMM.MatchString(s) {
		return parseHHMMDuration(s)
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use a duration like '16m', HH:MM like '00:16', or '@every 16m')", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

func parseCronDelay(expr string) (time.Duration, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid cron interval %q: %w", expr, err)
	}
	every, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return 0, fmt.Errorf("cron interval %q is not a fixed delay; use '@every <duration>'", expr)
	}
	return every.Delay, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	// hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
