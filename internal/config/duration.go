package config

import (
	"fmt"
	"strings"
	"time"
)

// parseDuration reads a duration setting. Unset is 0; negative values are
// rejected. key only labels the error.
func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration", key, raw)
	case d < 0:
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

// durationOr is for accessors on validated configs: unset, zero or
// unparsable values fall back to def.
func durationOr(raw string, def time.Duration) time.Duration {
	if d, err := parseDuration("", raw); err == nil && d > 0 {
		return d
	}
	return def
}
