package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hwbot/internal/notifier"
	logx "hwbot/pkg/logx"
)

const DefaultAddr = "127.0.0.1:9108"

type Config struct {
	Enabled bool
	Addr    string
	// Pprof mounts /debug/pprof on the same listener.
	Pprof bool
}

// History is the notifier view used by /healthz.
type History interface {
	Snapshot() []notifier.HistoryItem
}

type Server struct {
	cfg     Config
	log     logx.Logger
	rec     *Recorder
	history History

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

func NewServer(cfg Config, rec *Recorder, history History, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{cfg: cfg, rec: rec, history: history, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(s.rec.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", s.handleHealth)
	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.rec.Health()
	if s.history != nil {
		if items := s.history.Snapshot(); len(items) > 0 {
			last := items[len(items)-1]
			h.LastNotification = last.Text
			h.LastNotificationAt = last.At
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if !h.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}

// Serve listens on cfg.Addr and blocks until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.log.Error("metrics listen failed", logx.String("addr", s.cfg.Addr), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.ln = ln
	s.srv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("metrics started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof))
	err = srv.Serve(ln)

	s.mu.Lock()
	s.ln = nil
	s.srv = nil
	s.mu.Unlock()

	if ctx.Err() != nil {
		s.log.Info("metrics stopped")
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("metrics server exited unexpectedly")
	}
	return err
}

// Addr returns the bound address while serving, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}
