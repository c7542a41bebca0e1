package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

var ErrNoSender = errors.New("notifier has no sender")

// NotifyError wraps a failed delivery.
type NotifyError struct {
	Target kit.ChatTarget
	Err    error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify chat %s failed: %v", e.Target.ChatID, e.Err)
}
func (e *NotifyError) Unwrap() error { return e.Err }
func (e *NotifyError) Kind() string  { return "notify" }

type Config struct {
	Target         kit.ChatTarget
	RatePerSec     float64
	SendTimeout    time.Duration
	DisablePreview bool
}

type HistoryItem struct {
	At   time.Time
	Text string
}

const historySize = 100

// Service is safe for concurrent use, though the poll loop is its only caller.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	sender  kit.Sender
	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	burst := max(1, int(cfg.RatePerSec))
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
}

// Notify makes one delivery attempt. It logs any failure and returns it
// as *NotifyError; callers may ignore the result.
func (s *Service) Notify(ctx context.Context, text string) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()

	fail := func(err error) error {
		ne := &NotifyError{Target: cfg.Target, Err: err}
		s.log.Error("notification not delivered", logx.String("chat_id", cfg.Target.ChatID), logx.Err(err))
		return ne
	}

	if sender == nil {
		return fail(ErrNoSender)
	}
	if err := lim.Wait(ctx); err != nil {
		return fail(fmt.Errorf("rate limit wait: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()
	ref, err := sender.SendText(callCtx, cfg.Target, text, &kit.SendOptions{DisablePreview: cfg.DisablePreview})
	if err != nil {
		return fail(err)
	}

	s.appendHistory(text)
	s.log.Info("notification sent", logx.String("chat_id", cfg.Target.ChatID), logx.Int("message_id", ref.MessageID))
	return nil
}

// Snapshot returns the most recent delivered notifications, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Text: text})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}
