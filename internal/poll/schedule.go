package poll

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

func (k SpecKind) String() string {
	if k == SpecCron {
		return "cron"
	}
	return "interval"
}

// DefaultSchedule matches the historical ten minute pause.
const DefaultSchedule = "10m"

// Schedule decides how long the loop sleeps between iterations.
//
// Supported forms:
//   - Interval duration: "10m", "1h30m"
//   - Interval HH:MM: "00:10" (10 minutes)
//   - Cron: "*/10 * * * *", "@hourly", "@every 10m"
//
// "cron:" and "interval:" prefixes force a form.
type Schedule struct {
	Raw    string
	Kind   SpecKind
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"

	cron cron.Schedule
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(raw, strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(raw, strings.TrimSpace(s[len("interval:"):]))
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(raw, s)
	}
	sched, err := parseInterval(raw, s)
	if err != nil {
		return Schedule{}, fmt.Errorf(
			"invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')",
			raw,
		)
	}
	return sched, nil
}

// MustParseSchedule is for constants known to be valid.
func MustParseSchedule(raw string) Schedule {
	s, err := ParseSchedule(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func parseCron(raw, expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron schedule required after 'cron:'")
	}
	c, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Schedule{Raw: raw, Kind: SpecCron, Source: "cron", cron: c}, nil
}

func parseInterval(raw, v string) (Schedule, error) {
	if v == "" {
		return Schedule{}, fmt.Errorf("interval required")
	}
	var (
		d   time.Duration
		src string
	)
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Schedule{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d, src = time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute, "hhmm"
	} else {
		pd, err := time.ParseDuration(v)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '10m')", v)
		}
		d, src = pd, "duration"
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval must be > 0")
	}
	return Schedule{Raw: raw, Kind: SpecInterval, Every: d, Source: src}, nil
}

func (s Schedule) IsZero() bool { return s.Every <= 0 && s.cron == nil }

// Delay returns how long to wait after now before the next iteration.
func (s Schedule) Delay(now time.Time) time.Duration {
	switch {
	case s.Kind == SpecInterval && s.Every > 0:
		return s.Every
	case s.cron != nil:
		if d := s.cron.Next(now).Sub(now); d > 0 {
			return d
		}
		return time.Second
	default:
		return MustParseSchedule(DefaultSchedule).Every
	}
}

// Period estimates the gap between two fires. The health check uses it to
// decide when the last success is too old.
func (s Schedule) Period(now time.Time) time.Duration {
	if s.Kind == SpecInterval || s.cron == nil {
		return s.Delay(now)
	}
	first := s.cron.Next(now)
	return s.cron.Next(first).Sub(first)
}

func (s Schedule) String() string {
	if s.Raw != "" {
		return strings.TrimSpace(s.Raw)
	}
	if s.Kind == SpecInterval {
		return s.Every.String()
	}
	return ""
}
