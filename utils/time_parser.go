package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var longUnits = []struct {
	suffix byte
	unit   time.Duration
}{
	{'w', 7 * 24 * time.Hour},
	{'d', 24 * time.Hour},
}

// ParseDuration extends time.ParseDuration with day (d) and week (w) units,
// which may lead a compound value such as "1w2d" or "1d12h".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	var total time.Duration
	rest := s
	for _, u := range longUnits {
		idx := strings.IndexByte(rest, u.suffix)
		if idx == -1 {
			continue
		}
		n, err := strconv.Atoi(rest[:idx])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid %c value in %q", u.suffix, s)
		}
		total += time.Duration(n) * u.unit
		rest = rest[idx+1:]
	}
	if rest == "" {
		return total, nil
	}
	d, err := time.ParseDuration(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return total + d, nil
}
