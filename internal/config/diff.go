package config

import (
	"strings"

	logx "hwbot/pkg/logx"
)

// SummarizeConfigChange returns the changed sections, safe attrs for
// logging, and the subset of changed settings that only take effect after
// a restart. Nothing here is secret, but URLs are reported as set/unset
// only.
func SummarizeConfigChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, needRestart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	eq := func(a, b string) bool { return strings.TrimSpace(a) == strings.TrimSpace(b) }

	if !eq(oldCfg.Poll.Schedule, newCfg.Poll.Schedule) {
		changed = append(changed, "poll.schedule")
		attrs = append(attrs, logx.String("poll.schedule", strings.TrimSpace(newCfg.Poll.Schedule)))
	}
	if oldCfg.Poll.FromDate != newCfg.Poll.FromDate {
		changed = append(changed, "poll.from_date")
		needRestart = append(needRestart, "poll.from_date")
		attrs = append(attrs, logx.Int64("poll.from_date", newCfg.Poll.FromDate))
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !eq(oldCfg.Practicum.Endpoint, newCfg.Practicum.Endpoint) || !eq(oldCfg.Practicum.RequestTimeout, newCfg.Practicum.RequestTimeout) {
		changed = append(changed, "practicum")
		needRestart = append(needRestart, "practicum")
		attrs = append(attrs, logx.String("practicum.request_timeout", strings.TrimSpace(newCfg.Practicum.RequestTimeout)))
	}

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		needRestart = append(needRestart, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.api_url_set", strings.TrimSpace(newCfg.Telegram.APIURL) != ""),
			logx.Int("telegram.thread_id", newCfg.Telegram.ThreadID),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Any("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.String("notifier.send_timeout", strings.TrimSpace(newCfg.Notifier.SendTimeout)),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		needRestart = append(needRestart, "storage")
		attrs = append(attrs, logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)))
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		needRestart = append(needRestart, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(newCfg.Metrics.Addr)),
		)
	}

	return changed, attrs, needRestart
}
