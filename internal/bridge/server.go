package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/rackhost/internal/events"
	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/midi"
	"github.com/mattjoyce/rackhost/internal/param"
)

// MIDIHandler routes raw MIDI bytes.
type MIDIHandler interface {
	HandleBytes(b []byte) (midi.Mapped, bool, error)
}

// Config holds bridge server configuration.
type Config struct {
	Listen string
	Token  string
}

// Server is the HTTP bridge: remote parameter access, MIDI input, event
// stream, and metrics. It is the "bridge" subsystem.
type Server struct {
	config    Config
	bank      *param.Bank
	midi      MIDIHandler
	hub       *events.Hub
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	startedAt time.Time

	mu       sync.Mutex
	onEdit   func()
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a bridge server. gatherer may be nil to disable /metrics.
func New(config Config, bank *param.Bank, midi MIDIHandler, hub *events.Hub, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = log.WithComponent("bridge")
	}
	return &Server{
		config:    config,
		bank:      bank,
		midi:      midi,
		hub:       hub,
		gatherer:  gatherer,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// OnEdit registers a callback run after every remote parameter write.
func (s *Server) OnEdit(fn func()) {
	s.mu.Lock()
	s.onEdit = fn
	s.mu.Unlock()
}

func (s *Server) Name() string { return "bridge" }

// Init binds the listener and starts serving in the background.
func (s *Server) Init(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("bridge listen %s: %w", s.config.Listen, err)
	}

	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.server, s.listener, s.cancel, s.done = srv, ln, cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge server stopped", "error", err)
		}
	}()
	s.logger.Info("bridge listening", "addr", ln.Addr().String(), "auth", s.config.Token != "")
	return nil
}

// Destroy ends event streams and shuts the server down.
func (s *Server) Destroy() error {
	s.mu.Lock()
	srv, cancel, done := s.server, s.cancel, s.done
	s.server, s.listener, s.cancel, s.done = nil, nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	cancel()
	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	err := srv.Shutdown(ctx)
	<-done
	if err != nil {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	s.logger.Info("bridge stopped")
	return nil
}

// Addr returns the bound address, or "" when not serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Route("/params", func(r chi.Router) {
			r.Use(s.requireReady)
			r.Get("/", s.handleListParams)
			r.Get("/{id}", s.handleGetParam)
			r.Put("/{id}", s.handleSetParam)
		})
		r.Post("/midi", s.handleMIDI)
		r.Get("/events", s.handleEvents)
		if s.gatherer != nil {
			r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})
	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// requireReady rejects parameter access until the bank is frozen.
func (s *Server) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.bank.Frozen() {
			s.writeError(w, http.StatusServiceUnavailable, "session not ready")
			return
		}
		next.ServeHTTP(w, r)
	})
}
