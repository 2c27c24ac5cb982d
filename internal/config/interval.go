package config

import (
	"strconv"
	"strings"
	"time"
)

// IntervalDuration returns the wake interval as a duration. Validation has
// already guaranteed the string parses.
func (s SchedulerConfig) IntervalDuration() time.Duration {
	d, _ := parseIntervalString(s.Interval)
	return d
}

// parseIntervalString parses "30s", "15m", "1h", "1d" into a duration.
func parseIntervalString(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, true
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	default:
		return 0, false
	}
}
