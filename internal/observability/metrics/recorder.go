// Package metrics exposes poll loop counters to Prometheus and serves a
// small health endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hwbot/internal/homework"
	"hwbot/internal/poll"
	"hwbot/internal/storage"
)

// staleFactor is how many schedule periods may pass without a successful
// iteration before /healthz reports unhealthy.
const staleFactor = 3

// Recorder implements poll.Observer.
type Recorder struct {
	reg *prometheus.Registry

	polls         *prometheus.CounterVec
	pollErrors    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	watermark     prometheus.Gauge
	lastSuccessTS prometheus.Gauge

	now func() time.Time

	mu        sync.Mutex
	startedAt time.Time
	period    time.Duration
	health    Health
}

// Health is the JSON body of /healthz.
type Health struct {
	OK            bool      `json:"ok"`
	StartedAt     time.Time `json:"started_at"`
	LastSuccess   time.Time `json:"last_success,omitzero"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitzero"`
	Watermark     int64     `json:"watermark"`
	LastStatus    string    `json:"last_status,omitempty"`
	Iterations    uint64    `json:"iterations"`

	LastNotification   string    `json:"last_notification,omitempty"`
	LastNotificationAt time.Time `json:"last_notification_at,omitzero"`
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	r := &Recorder{
		reg: reg,
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hwbot_polls_total",
			Help: "Poll iterations by result.",
		}, []string{"result"}),
		pollErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hwbot_poll_errors_total",
			Help: "Failed poll iterations by error kind.",
		}, []string{"kind"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hwbot_notifications_total",
			Help: "Notification attempts by kind and result.",
		}, []string{"kind", "result"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hwbot_fetch_duration_seconds",
			Help:    "Latency of status API requests.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		watermark: f.NewGauge(prometheus.GaugeOpts{
			Name: "hwbot_watermark",
			Help: "Current from_date watermark (unix seconds).",
		}),
		lastSuccessTS: f.NewGauge(prometheus.GaugeOpts{
			Name: "hwbot_last_success_timestamp_seconds",
			Help: "Unix time of the last successful iteration.",
		}),
		now: time.Now,
	}
	r.startedAt = r.now()
	r.health.StartedAt = r.startedAt
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// SetPeriod updates the expected gap between iterations.
func (r *Recorder) SetPeriod(d time.Duration) {
	r.mu.Lock()
	r.period = d
	r.mu.Unlock()
}

func (r *Recorder) FetchDone(took time.Duration) {
	r.fetchDuration.Observe(took.Seconds())
}

func (r *Recorder) IterationDone(st poll.State, err error) {
	now := r.now()
	r.watermark.Set(float64(st.Watermark))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.health.Iterations++
	r.health.Watermark = st.Watermark
	r.health.LastStatus = string(st.LastStatus)

	if err != nil {
		kind := homework.Kind(err)
		r.polls.WithLabelValues("error").Inc()
		r.pollErrors.WithLabelValues(kind).Inc()
		r.health.LastError = err.Error()
		r.health.LastErrorKind = kind
		r.health.LastErrorAt = now
		return
	}
	r.polls.WithLabelValues("ok").Inc()
	r.lastSuccessTS.Set(float64(now.Unix()))
	r.health.LastSuccess = now
}

func (r *Recorder) NotificationDone(kind storage.EntryKind, err error) {
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	r.notifications.WithLabelValues(string(kind), result).Inc()
}

// Health reports the current health. Before the first success the start
// time stands in for it.
func (r *Recorder) Health() Health {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.health
	ref := h.LastSuccess
	if ref.IsZero() {
		ref = r.startedAt
	}
	h.OK = r.period <= 0 || now.Sub(ref) <= staleFactor*r.period
	return h
}
