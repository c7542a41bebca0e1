package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"hwbot/internal/observability/metrics"
	"hwbot/internal/poll"
	"hwbot/internal/practicum"
	"hwbot/internal/storage"
	logx "hwbot/pkg/logx"
)

const (
	DefaultSendTimeout     = 10 * time.Second
	DefaultTelegramTimeout = 15 * time.Second
	DefaultRatePerSec      = 1.0
)

// Default returns the configuration used when no file exists. Parsed files
// are decoded on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Practicum: PracticumConfig{
			Endpoint:       practicum.DefaultEndpoint,
			RequestTimeout: practicum.DefaultTimeout.String(),
		},
		Poll: PollConfig{Schedule: poll.DefaultSchedule},
		Notifier: NotifierConfig{
			RatePerSec:  DefaultRatePerSec,
			SendTimeout: DefaultSendTimeout.String(),
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "none"},
		Metrics: MetricsConfig{Addr: metrics.DefaultAddr},
	}
}

// Validate reports every problem at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if ep := strings.TrimSpace(cfg.Practicum.Endpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add(fmt.Errorf("practicum.endpoint: invalid URL %q", ep))
		}
	}
	_, err := parseDuration("practicum.request_timeout", cfg.Practicum.RequestTimeout)
	add(err)

	if strings.TrimSpace(cfg.Poll.Schedule) != "" {
		if _, err := poll.ParseSchedule(cfg.Poll.Schedule); err != nil {
			add(fmt.Errorf("poll.schedule: %w", err))
		}
	}
	if cfg.Poll.FromDate < 0 {
		add(errors.New("poll.from_date: must be >= 0"))
	}

	if api := strings.TrimSpace(cfg.Telegram.APIURL); api != "" {
		if u, err := url.Parse(api); err != nil || u.Scheme == "" || u.Host == "" {
			add(fmt.Errorf("telegram.api_url: invalid URL %q", api))
		}
	}
	if cfg.Telegram.ThreadID < 0 {
		add(errors.New("telegram.thread_id: must be >= 0"))
	}
	_, err = parseDuration("telegram.timeout", cfg.Telegram.Timeout)
	add(err)

	if cfg.Notifier.RatePerSec < 0 {
		add(errors.New("notifier.rate_per_sec: must be >= 0"))
	}
	_, err = parseDuration("notifier.send_timeout", cfg.Notifier.SendTimeout)
	add(err)

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add(fmt.Errorf("logging.level: unknown level %q", lvl))
	}

	if !storage.ValidDriver(cfg.Storage.Driver) {
		add(fmt.Errorf("storage.driver: unknown driver %q (use none, file or sqlite)", cfg.Storage.Driver))
	} else if d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d != "" && d != "none" && strings.TrimSpace(cfg.Storage.Path) == "" {
		add(fmt.Errorf("storage.path: required for driver %q", d))
	}
	_, err = parseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout)
	add(err)

	return errors.Join(errs...)
}

func (p PracticumConfig) Timeout() time.Duration {
	return durationOr(p.RequestTimeout, practicum.DefaultTimeout)
}

// ParsedSchedule falls back to the default on an empty or invalid value;
// Validate rejects invalid ones before they get here.
func (p PollConfig) ParsedSchedule() poll.Schedule {
	s, err := poll.ParseSchedule(p.Schedule)
	if err != nil {
		return poll.MustParseSchedule(poll.DefaultSchedule)
	}
	return s
}

func (t TelegramConfig) ClientTimeout() time.Duration {
	return durationOr(t.Timeout, DefaultTelegramTimeout)
}

func (n NotifierConfig) Timeout() time.Duration {
	return durationOr(n.SendTimeout, DefaultSendTimeout)
}

func (s StorageConfig) ToStorage() storage.Config {
	bt := durationOr(s.BusyTimeout, 0)
	return storage.Config{Driver: s.Driver, Path: s.Path, BusyTimeout: bt}
}

func (l LoggingConfig) ToLogx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}
