package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/notifier"
	"hwbot/internal/observability/metrics"
	"hwbot/internal/poll"
	"hwbot/internal/practicum"
	"hwbot/internal/runtime/supervisor"
	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
	"hwbot/pkg/systemd"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	ConfigPath string
	// EnvFile is loaded into the environment before credentials are read.
	// A missing file is ignored.
	EnvFile string
}

type App struct {
	cfgm  *config.ConfigManager
	cfg   *config.Config
	creds config.Credentials

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	notif   *notifier.Service
	loop    *poll.Loop
	rec     *metrics.Recorder
	metrics *metrics.Server
	sd      *systemd.Notifier
}

// New builds every component. Any error here is fatal: the poll loop never
// starts with missing credentials or a broken config.
func New(opt Options) (*App, error) {
	creds, err := config.LoadCredentials(opt.EnvFile)
	if err != nil {
		return nil, err
	}

	// Console logger until the configured sinks exist.
	boot := logx.NewConsole("info")
	cfgm := config.NewConfigManager(opt.ConfigPath)
	cfgm.SetLogger(boot.With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(cfg.Logging.ToLogx())
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	a := &App{cfgm: cfgm, cfg: cfg, creds: creds, log: log, logs: logSvc, sd: systemd.New()}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	sc := cfg.Storage.ToStorage()
	a.store, err = storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if a.store != nil {
		log.Info("journal enabled", logx.String("driver", sc.Driver))
	}

	fetcher, err := practicum.New(practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    creds.PracticumToken,
		Timeout:  cfg.Practicum.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:   creds.TelegramToken,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: cfg.Telegram.ClientTimeout(),
	}, root.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	a.notif = notifier.New(a.notifierConfig(cfg), ad, root.With(logx.String("comp", "notifier")))

	sched := cfg.Poll.ParsedSchedule()
	a.rec = metrics.NewRecorder()
	a.rec.SetPeriod(sched.Period(time.Now()))

	sdLog := root.With(logx.String("comp", "systemd"))
	a.loop, err = poll.New(poll.Options{
		Fetcher:  fetcher,
		Notifier: a.notif,
		Schedule: sched,
		Log:      root.With(logx.String("comp", "poll")),
		Journal:  a.store,
		Observer: a.rec,
		Heartbeat: func() {
			if _, err := a.sd.Watchdog(); err != nil {
				sdLog.Debug("watchdog notify failed", logx.Err(err))
			}
		},
	})
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewServer(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Pprof:   cfg.Metrics.Pprof,
		}, a.rec, a.notif, root.With(logx.String("comp", "metrics")))
	}

	ok = true
	return a, nil
}

// Run polls until ctx is done, then shuts the side goroutines down and
// releases resources. It returns nil on a signal-driven stop.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	sub := a.cfgm.Subscribe(4)
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go("config.reload", func(c context.Context) error {
		a.reloadLoop(c, sub)
		return nil
	})
	if a.metrics != nil {
		sup.GoRestart("metrics.serve", a.metrics.Serve, 500*time.Millisecond, 10*time.Second)
	}
	// Ping at half of WatchdogSec, independent of the poll schedule.
	if iv := systemd.WatchdogInterval(); iv > 0 {
		a.log.Info("systemd watchdog enabled", logx.Duration("interval", iv))
		sup.GoRestart("systemd.watchdog", func(c context.Context) error {
			return a.sd.Keepalive(c, iv/2)
		}, time.Second, iv/2)
	}

	if _, err := a.sd.Ready(); err != nil {
		a.log.Warn("systemd ready notify failed", logx.Err(err))
	}
	_, _ = a.sd.Status("polling " + a.cfg.Poll.ParsedSchedule().String())

	st := poll.NewState(a.cfg.Poll.FromDate, time.Now())
	a.log.Info("bot started",
		logx.String("schedule", a.cfg.Poll.ParsedSchedule().String()),
		logx.Int64("from_date", st.Watermark),
		logx.Bool("metrics", a.metrics != nil),
	)

	st = a.loop.Run(ctx, st)

	_, _ = a.sd.Stopping()
	a.log.Info("bot stopping", logx.Int64("watermark", st.Watermark), logx.String("last_status", string(st.LastStatus)))

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer a.close()
	defer a.cfgm.Unsubscribe(sub)

	err := sup.Stop(sctx)
	c := sup.Counters()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		a.log.Warn("side goroutines did not stop in time", logx.Int64("active", c.Active))
	case err != nil:
		// Side goroutines are optional; their failures were already logged.
		a.log.Debug("supervisor reported error", logx.Err(err), logx.Int64("panics", int64(c.Panics)))
	default:
		a.log.Debug("side goroutines stopped",
			logx.Int64("started", int64(c.Started)),
			logx.Int64("panics", int64(c.Panics)),
		)
	}
	return nil
}

// reloadLoop applies hot-reloadable settings and warns about the rest.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)

	if prev == nil || prev.Logging != next.Logging {
		a.logs.Apply(next.Logging.ToLogx())
	}
	if prev == nil || strings.TrimSpace(prev.Poll.Schedule) != strings.TrimSpace(next.Poll.Schedule) {
		sched := next.Poll.ParsedSchedule()
		a.loop.Reschedule(sched)
		a.rec.SetPeriod(sched.Period(time.Now()))
		_, _ = a.sd.Status("polling " + sched.String())
	}
	if prev == nil || prev.Notifier != next.Notifier {
		a.notif.Apply(a.notifierConfig(next))
	}
	if len(restart) > 0 {
		a.log.Warn("some config changes take effect after restart", logx.String("sections", strings.Join(restart, ",")))
	}
}

func (a *App) notifierConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		Target:         kit.ChatTarget{ChatID: a.creds.TelegramChatID, ThreadID: a.cfg.Telegram.ThreadID},
		RatePerSec:     cfg.Notifier.RatePerSec,
		SendTimeout:    cfg.Notifier.Timeout(),
		DisablePreview: true,
	}
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("journal close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
