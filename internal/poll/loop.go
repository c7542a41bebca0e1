package poll

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"hwbot/internal/homework"
	"hwbot/internal/storage"
	logx "hwbot/pkg/logx"
)

// ErrorTextPrefix starts every failure notification.
const ErrorTextPrefix = "Сбой в работе программы: "

const journalTimeout = 5 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, fromDate int64) (any, error)
}

// Notifier makes one delivery attempt. A non-nil error means the text was
// not delivered; the loop records it and moves on.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Observer receives iteration outcomes. Implementations must be safe for
// use from the loop goroutine while other goroutines read them.
type Observer interface {
	FetchDone(took time.Duration)
	IterationDone(st State, err error)
	NotificationDone(kind storage.EntryKind, err error)
}

// State is everything the loop carries from one iteration to the next.
type State struct {
	Watermark     int64
	LastStatus    homework.Status
	LastErrorText string
}

// NewState starts from fromDate, or from now when fromDate is 0.
func NewState(fromDate int64, now time.Time) State {
	if fromDate <= 0 {
		fromDate = now.Unix()
	}
	return State{Watermark: fromDate}
}

type Options struct {
	Fetcher  Fetcher
	Notifier Notifier
	Schedule Schedule
	Log      logx.Logger

	// Optional.
	Journal   storage.Store
	Observer  Observer
	Heartbeat func()
	NewRunID  func() string
	Now       func() time.Time
}

type Loop struct {
	fetcher   Fetcher
	notifier  Notifier
	journal   storage.Store
	obs       Observer
	heartbeat func()
	newRunID  func() string
	now       func() time.Time
	log       logx.Logger

	sched      Schedule
	reschedule chan Schedule
}

func New(opt Options) (*Loop, error) {
	if opt.Fetcher == nil {
		return nil, errors.New("poll: fetcher is required")
	}
	if opt.Notifier == nil {
		return nil, errors.New("poll: notifier is required")
	}
	l := &Loop{
		fetcher:    opt.Fetcher,
		notifier:   opt.Notifier,
		journal:    opt.Journal,
		obs:        opt.Observer,
		heartbeat:  opt.Heartbeat,
		newRunID:   opt.NewRunID,
		now:        opt.Now,
		log:        opt.Log,
		sched:      opt.Schedule,
		reschedule: make(chan Schedule, 1),
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	if l.sched.IsZero() {
		l.sched = MustParseSchedule(DefaultSchedule)
	}
	if l.newRunID == nil {
		l.newRunID = func() string { return uuid.NewString() }
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// Reschedule replaces the schedule used from the next sleep on.
// It never blocks; only the latest pending schedule is kept.
func (l *Loop) Reschedule(s Schedule) {
	if s.IsZero() {
		return
	}
	for {
		select {
		case l.reschedule <- s:
			return
		default:
		}
		select {
		case <-l.reschedule:
		default:
		}
	}
}

// Run iterates until ctx is done and returns the last state.
func (l *Loop) Run(ctx context.Context, st State) State {
	l.log.Info("poll loop started",
		logx.String("schedule", l.sched.String()),
		logx.Int64("watermark", st.Watermark),
	)
	for {
		st = l.Step(ctx, st)
		if !l.sleep(ctx) {
			l.log.Info("poll loop stopped", logx.Int64("watermark", st.Watermark))
			return st
		}
	}
}

func (l *Loop) sleep(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	delay := l.sched.Delay(l.now())
	timer := time.NewTimer(delay)
	defer timer.Stop()
	l.log.Debug("sleeping", logx.Duration("for", delay))

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case s := <-l.reschedule:
			l.sched = s
			delay = s.Delay(l.now())
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(delay)
			l.log.Info("schedule updated", logx.String("schedule", s.String()), logx.Duration("next_in", delay))
		}
	}
}

// Step runs one iteration: fetch, validate, notify on change. Errors never
// escape; they turn into at most one failure notification per distinct text.
func (l *Loop) Step(ctx context.Context, st State) State {
	runID := l.newRunID()
	log := l.log.With(logx.String("run_id", runID))

	next, err := l.iterate(ctx, log, runID, st)
	if err != nil && ctx.Err() != nil {
		log.Debug("iteration interrupted", logx.Err(err))
		return st
	}
	if err != nil {
		next = st
		log.Error("iteration failed", logx.String("kind", homework.Kind(err)), logx.Err(err))
		text := ErrorTextPrefix + err.Error()
		if text != st.LastErrorText {
			l.notify(ctx, log, storage.JournalEntry{
				RunID:     runID,
				Kind:      storage.KindError,
				Text:      text,
				Watermark: st.Watermark,
			})
			next.LastErrorText = text
		} else {
			log.Debug("repeated failure, notification suppressed")
		}
	}

	if l.obs != nil {
		l.obs.IterationDone(next, err)
	}
	if l.heartbeat != nil {
		l.heartbeat()
	}
	return next
}

func (l *Loop) iterate(ctx context.Context, log logx.Logger, runID string, st State) (State, error) {
	start := l.now()
	body, err := l.fetcher.Fetch(ctx, st.Watermark)
	if l.obs != nil {
		l.obs.FetchDone(l.now().Sub(start))
	}
	if err != nil {
		return st, err
	}

	entry, err := homework.CheckResponse(body)
	if err != nil {
		return st, err
	}
	rec, err := homework.RecordFrom(entry)
	if err != nil {
		return st, err
	}

	if rec.Status != st.LastStatus {
		text, err := homework.Format(rec)
		if err != nil {
			return st, err
		}
		l.notify(ctx, log, storage.JournalEntry{
			RunID:     runID,
			Kind:      storage.KindStatus,
			Homework:  rec.Name,
			Status:    string(rec.Status),
			Text:      text,
			Watermark: st.Watermark,
		})
		st.LastStatus = rec.Status
	} else {
		log.Debug("status unchanged", logx.String("homework", rec.Name), logx.String("status", string(rec.Status)))
	}

	if ts, ok := homework.CurrentDate(body); ok {
		st.Watermark = ts
	} else {
		log.Warn("response has no usable current_date, watermark kept", logx.Int64("watermark", st.Watermark))
	}
	return st, nil
}

func (l *Loop) notify(ctx context.Context, log logx.Logger, e storage.JournalEntry) {
	err := l.notifier.Notify(ctx, e.Text)
	e.At = l.now()
	e.Delivered = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	if l.obs != nil {
		l.obs.NotificationDone(e.Kind, err)
	}
	if l.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if jerr := l.journal.AppendJournal(jctx, e); jerr != nil {
		log.Warn("journal append failed", logx.Err(jerr))
	}
}
