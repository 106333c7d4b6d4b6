// Package api provides the HTTP monitoring API of the relay.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kmrelay/internal/protocol"
	"kmrelay/internal/relay"
)

// Relay is the part of the dispatcher the API reports on.
type Relay interface {
	Stats() relay.Stats
	Paused() bool
}

// Server provides HTTP API for monitoring
type Server struct {
	relay    Relay
	listen   string
	token    string
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	wsMgr    *WSManager

	hubOnce sync.Once
	mu      sync.Mutex
	srv     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every request
// except /health.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new API server reporting on r, whose UDP receiver
// listens on listen.
func NewServer(r Relay, listen string, opts ...Option) *Server {
	s := &Server{
		relay:    r,
		listen:   listen,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Handler returns the API routes wrapped in the auth and recover
// middleware. The websocket hub starts on first use.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.wsMgr.start() })

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves the API on addr. It blocks until Shutdown.
func (s *Server) Start(addr string) error {
	// tcp4 keeps Windows from binding IPv6 only.
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.srv = &http.Server{Handler: s.Handler()}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("API server listening", slog.String("address", ln.Addr().String()))

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()

	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("API handler panic", slog.Any("panic", err), slog.String("path", r.URL.Path))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("API request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
		)

		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Browsers cannot set headers on websocket upgrades.
		if r.Header.Get("Authorization") != "Bearer "+s.token && r.URL.Query().Get("token") != s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status())
}

func (s *Server) status() protocol.StatusPayload {
	st := s.relay.Stats()
	return protocol.StatusPayload{
		Listen:    s.listen,
		Paused:    s.relay.Paused(),
		Received:  st.Received,
		Forwarded: st.Forwarded,
		Rejected:  st.Rejected,
	}
}

// BroadcastEvent pushes a relay event to every websocket client. It never
// blocks the caller; events are dropped when the hub is saturated.
func (s *Server) BroadcastEvent(ev relay.Event) {
	s.wsMgr.broadcastEvent(eventPayload(ev))
}

func eventPayload(ev relay.Event) protocol.EventPayload {
	p := protocol.EventPayload{
		Time:   ev.Time.UnixMilli(),
		Source: ev.Source,
		Line:   ev.Line,
	}
	if ev.Packet != nil {
		p.Command = ev.Packet.Header.Command.String()
		p.Mac = fmt.Sprintf("%08X", ev.Packet.Header.Mac)
		p.Index = ev.Packet.Header.Index
		p.Fields = ev.Packet.Command
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return p
}
