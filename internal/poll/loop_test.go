package poll

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hwbot/internal/homework"
	"hwbot/internal/storage"
	logx "hwbot/pkg/logx"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

type fetchResult struct {
	body any
	err  error
}

type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   []int64
	hook    func(n int)
}

func (f *fakeFetcher) Fetch(ctx context.Context, fromDate int64) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fromDate)
	n := len(f.calls)
	r := f.results[min(n, len(f.results))-1]
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return r.body, r.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (n *fakeNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return n.err
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

type memJournal struct {
	entries []storage.JournalEntry
}

func (j *memJournal) AppendJournal(ctx context.Context, e storage.JournalEntry) error {
	j.entries = append(j.entries, e)
	return nil
}
func (j *memJournal) Close() error { return nil }

type countingObserver struct {
	fetches    int
	iterations []error
	notes      map[storage.EntryKind]int
}

func (o *countingObserver) FetchDone(time.Duration) { o.fetches++ }
func (o *countingObserver) IterationDone(st State, err error) {
	o.iterations = append(o.iterations, err)
}
func (o *countingObserver) NotificationDone(kind storage.EntryKind, err error) {
	if o.notes == nil {
		o.notes = map[storage.EntryKind]int{}
	}
	o.notes[kind]++
}

func newTestLoop(t *testing.T, f Fetcher, n Notifier, j storage.Store, o Observer) *Loop {
	t.Helper()
	l, err := New(Options{
		Fetcher:  f,
		Notifier: n,
		Journal:  j,
		Observer: o,
		Log:      logx.Nop(),
		NewRunID: func() string { return "run" },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

const approvedBody = `{"homeworks":[{"homework_name":"hw1","status":"approved"}],"current_date":1000}`

func TestStepApprovedScenario(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []fetchResult{{body: decode(t, approvedBody)}}}
	n := &fakeNotifier{}
	j := &memJournal{}
	o := &countingObserver{}
	heartbeats := 0
	l := newTestLoop(t, f, n, j, o)
	l.heartbeat = func() { heartbeats++ }

	st := l.Step(context.Background(), State{Watermark: 500})

	want := `Изменился статус проверки работы "hw1". Работа проверена: ревьюеру всё понравилось. Ура!`
	if got := n.sent(); len(got) != 1 || got[0] != want {
		t.Fatalf("sent = %q", got)
	}
	if st.Watermark != 1000 {
		t.Fatalf("Watermark = %d, want 1000", st.Watermark)
	}
	if st.LastStatus != homework.StatusApproved {
		t.Fatalf("LastStatus = %q", st.LastStatus)
	}
	if f.calls[0] != 500 {
		t.Fatalf("fetched from %d, want 500", f.calls[0])
	}
	if len(j.entries) != 1 || !j.entries[0].Delivered || j.entries[0].Kind != storage.KindStatus || j.entries[0].Homework != "hw1" {
		t.Fatalf("journal = %+v", j.entries)
	}
	if o.fetches != 1 || len(o.iterations) != 1 || o.iterations[0] != nil || o.notes[storage.KindStatus] != 1 {
		t.Fatalf("observer = %+v", o)
	}
	if heartbeats != 1 {
		t.Fatalf("heartbeats = %d", heartbeats)
	}
}

func TestStepSameStatusNotifiesOnce(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []fetchResult{
		{body: decode(t, `{"homeworks":[{"homework_name":"hw1","status":"reviewing"}],"current_date":10}`)},
		{body: decode(t, `{"homeworks":[{"homework_name":"hw1","status":"reviewing"}],"current_date":20}`)},
	}}
	n := &fakeNotifier{}
	l := newTestLoop(t, f, n, nil, nil)

	st := l.Step(context.Background(), State{Watermark: 1})
	st = l.Step(context.Background(), st)

	if got := n.sent(); len(got) != 1 {
		t.Fatalf("expected exactly one notification, got %q", got)
	}
	if st.Watermark != 20 {
		t.Fatalf("watermark should still advance, got %d", st.Watermark)
	}
	if f.calls[1] != 10 {
		t.Fatalf("second fetch used %d, want 10", f.calls[1])
	}
}

func TestStepStatusChangeNotifiesAgain(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []fetchResult{
		{body: decode(t, `{"homeworks":[{"homework_name":"hw1","status":"reviewing"}],"current_date":10}`)},
		{body: decode(t, `{"homeworks":[{"homework_name":"hw1","status":"rejected"}],"current_date":20}`)},
	}}
	n := &fakeNotifier{}
	l := newTestLoop(t, f, n, nil, nil)

	st := l.Step(context.Background(), State{Watermark: 1})
	st = l.Step(context.Background(), st)

	got := n.sent()
	if len(got) != 2 || !strings.Contains(got[1], "у ревьюера есть замечания") {
		t.Fatalf("sent = %q", got)
	}
	if st.LastStatus != homework.StatusRejected {
		t.Fatalf("LastStatus = %q", st.LastStatus)
	}
}

func TestStepEmptyListNotifiesErrorOnce(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []fetchResult{{body: decode(t, `{"homeworks":[]}`)}}}
	n := &fakeNotifier{}
	j := &memJournal{}
	o := &countingObserver{}
	l := newTestLoop(t, f, n, j, o)

	st := l.Step(context.Background(), State{Watermark: 42})
	st = l.Step(context.Background(), st)

	got := n.sent()
	if len(got) != 1 {
		t.Fatalf("expected one error notification, got %q", got)
	}
	if !strings.HasPrefix(got[0], ErrorTextPrefix) {
		t.Fatalf("error text = %q", got[0])
	}
	if st.Watermark != 42 {
		t.Fatalf("watermark moved to %d", st.Watermark)
	}
	if st.LastErrorText != got[0] {
		t.Fatalf("LastErrorText = %q", st.LastErrorText)
	}
	if len(j.entries) != 1 || j.entries[0].Kind != storage.KindError {
		t.Fatalf("journal = %+v", j.entries)
	}
	var se *homework.SchemaError
	if len(o.iterations) != 2 || !errors.As(o.iterations[1], &se) {
		t.Fatalf("iterations = %v", o.iterations)
	}
}

func TestStepErrorTextNotResetBySuccess(t *testing.T) {
	t.Parallel()
	down := errors.New("connection refused")
	f := &fakeFetcher{results: []fetchResult{
		{err: down},
		{body: decode(t, approvedBody)},
		{err: down},
	}}
	n := &fakeNotifier{}
	l := newTestLoop(t, f, n, nil, nil)

	st := State{Watermark: 1}
	for i := 0; i < 3; i++ {
		st = l.Step(context.Background(), st)
	}

	got := n.sent()
	if len(got) != 2 {
		t.Fatalf("sent = %q", got)
	}
	if got[0] != ErrorTextPrefix+"connection refused" {
		t.Fatalf("error text = %q", got[0])
	}
	if st.Watermark != 1000 {
		t.Fatalf("Watermark = %d", st.Watermark)
	}
}

func TestStepUnknownStatusIsError(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []fetchResult{
		{body: decode(t, `{"homeworks":[{"homework_name":"hw1","status":"lost"}],"current_date":10}`)},
	}}
	n := &fakeNotifier{}
	l := newTestLoop(t, f, n, nil, nil)

	st := l.Step(context.Background(), State{Watermark: 1})

	got := n.sent()
	if len(got) != 1 || !strings.HasPrefix(got[0], ErrorTextPrefix) || !strings.Contains(got[0], "lost") {
		t.Fatalf("sent = %q", got)
	}
	if st.Watermark != 1 || st.LastStatus != "" {
		t.Fatalf("state = %+v", st)
	}
}

func TestStepNotifyFailureDoesNotStopLoop(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []fetchResult{{body: decode(t, approvedBody)}}}
	n := &fakeNotifier{err: errors.New("telegram down")}
	j := &memJournal{}
	l := newTestLoop(t, f, n, j, nil)

	st := l.Step(context.Background(), State{Watermark: 1})
	st = l.Step(context.Background(), st)

	if got := n.sent(); len(got) != 1 {
		t.Fatalf("status should be attempted once, got %q", got)
	}
	if st.LastStatus != homework.StatusApproved || st.Watermark != 1000 {
		t.Fatalf("state = %+v", st)
	}
	if st.LastErrorText != "" {
		t.Fatalf("delivery failure must not be reported as iteration failure: %q", st.LastErrorText)
	}
	if len(j.entries) != 1 || j.entries[0].Delivered || j.entries[0].Error == "" {
		t.Fatalf("journal = %+v", j.entries)
	}
}

func TestStepMissingCurrentDateKeepsWatermark(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []fetchResult{
		{body: decode(t, `{"homeworks":[{"homework_name":"hw1","status":"approved"}]}`)},
	}}
	l := newTestLoop(t, f, &fakeNotifier{}, nil, nil)

	st := l.Step(context.Background(), State{Watermark: 77})
	if st.Watermark != 77 || st.LastStatus != homework.StatusApproved {
		t.Fatalf("state = %+v", st)
	}
}

func TestStepCancelledContextSkipsErrorNotification(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{results: []fetchResult{{err: context.Canceled}}}
	n := &fakeNotifier{}
	l := newTestLoop(t, f, n, nil, nil)

	st := l.Step(ctx, State{Watermark: 5})
	if len(n.sent()) != 0 || st.LastErrorText != "" {
		t.Fatalf("unexpected notification on shutdown: %q", n.sent())
	}
}

func TestNewState(t *testing.T) {
	t.Parallel()
	now := time.Unix(1700000000, 0)
	if st := NewState(0, now); st.Watermark != 1700000000 {
		t.Fatalf("Watermark = %d", st.Watermark)
	}
	if st := NewState(123, now); st.Watermark != 123 {
		t.Fatalf("Watermark = %d", st.Watermark)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := New(Options{Notifier: &fakeNotifier{}}); err == nil {
		t.Fatal("expected error without fetcher")
	}
	if _, err := New(Options{Fetcher: &fakeFetcher{}}); err == nil {
		t.Fatal("expected error without notifier")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{results: []fetchResult{{body: decode(t, approvedBody)}}}
	f.hook = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	l := newTestLoop(t, f, &fakeNotifier{}, nil, nil)
	l.sched = MustParseSchedule("5ms")

	done := make(chan State, 1)
	go func() { done <- l.Run(ctx, State{Watermark: 1}) }()

	select {
	case st := <-done:
		if f.count() != 3 {
			t.Fatalf("fetches = %d, want 3", f.count())
		}
		if st.Watermark != 1000 {
			t.Fatalf("Watermark = %d", st.Watermark)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRescheduleWakesSleepingLoop(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetched := make(chan int, 8)
	f := &fakeFetcher{results: []fetchResult{{body: decode(t, approvedBody)}}}
	f.hook = func(n int) {
		select {
		case fetched <- n:
		default:
		}
	}
	l := newTestLoop(t, f, &fakeNotifier{}, nil, nil)
	l.sched = MustParseSchedule("1h")

	done := make(chan struct{})
	go func() {
		l.Run(ctx, State{Watermark: 1})
		close(done)
	}()

	select {
	case <-fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("first fetch did not happen")
	}

	l.Reschedule(MustParseSchedule("10ms"))

	select {
	case n := <-fetched:
		if n != 2 {
			t.Fatalf("unexpected fetch #%d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reschedule did not shorten the sleep")
	}

	cancel()
	<-done
}
