package config

// Config holds the tunables read from the config file. Secrets never live
// here; see LoadCredentials.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Only logging.* and poll.schedule are applied without a restart.
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Poll      PollConfig      `json:"poll"`
	Telegram  TelegramConfig  `json:"telegram"`
	Notifier  NotifierConfig  `json:"notifier"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type PracticumConfig struct {
	Endpoint       string `json:"endpoint"`
	RequestTimeout string `json:"request_timeout"`
}

// PollConfig controls the loop cadence.
//
// Schedule accepts a duration ("10m"), HH:MM ("00:10") or a cron
// expression ("*/10 * * * *", "@every 10m").
// FromDate is the initial watermark in unix seconds; 0 means process start.
type PollConfig struct {
	Schedule string `json:"schedule"`
	FromDate int64  `json:"from_date,omitempty"`
}

type TelegramConfig struct {
	// APIURL overrides the Bot API base URL (self-hosted Bot API server).
	APIURL   string `json:"api_url,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type NotifierConfig struct {
	RatePerSec  float64 `json:"rate_per_sec"`
	SendTimeout string  `json:"send_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional notification journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/hwbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// MetricsConfig controls the optional /metrics and /healthz listener.
// Prefer a loopback address; nothing on it is authenticated.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}
