// Package web serves the browser lab: an HTTP API over the bench, a
// websocket stream of chart frames and the single-page control panel.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/voltbench/leakage-simulator/internal/bench"
	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/internal/observability"
	"github.com/voltbench/leakage-simulator/model"
)

// controlRequest is the body accepted by /api/control and by the
// websocket inbound channel.
type controlRequest struct {
	Command string `json:"command"`
}

// Server exposes the bench over HTTP and websocket.
type Server struct {
	bench   *bench.Bench
	log     logging.Logger
	metrics *observability.StationCollector
	hub     *wsHub

	httpServer *http.Server
}

// New builds a server bound to addr. metrics may be nil.
func New(addr string, b *bench.Bench, log logging.Logger, metrics *observability.StationCollector) *Server {
	s := &Server{
		bench:   b,
		log:     log,
		metrics: metrics,
		hub:     newHub(log),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/state", s.route("/api/state", http.HandlerFunc(s.handleState)))
	mux.Handle("/api/trace", s.route("/api/trace", http.HandlerFunc(s.handleTrace)))
	mux.Handle("/api/context", s.route("/api/context", http.HandlerFunc(s.handleContext)))
	mux.Handle("/api/parameters", s.route("/api/parameters", http.HandlerFunc(s.handleParameters)))
	mux.Handle("/api/control", s.route("/api/control", http.HandlerFunc(s.handleControl)))
	mux.Handle("/healthz", s.route("/healthz", http.HandlerFunc(s.handleHealthz)))
	mux.Handle("/", s.route("/", http.HandlerFunc(s.handleIndex)))
	// The websocket upgrade needs the raw ResponseWriter, so it skips
	// the metrics middleware.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.handle(s, w, r)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// route attaches a request-scoped logger and, when configured, HTTP
// metrics.
func (s *Server) route(name string, next http.Handler) http.Handler {
	h := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, reqLog := logging.WithRequestLogger(r.Context(), s.log)
		ctx = logging.ContextWithLogger(ctx, reqLog)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
	return s.metrics.Middleware(name, h)
}

// ListenAndServe blocks serving HTTP until the server shuts down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve blocks serving HTTP on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown disconnects websocket clients and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast fans a frame out to websocket clients. The hub retains it
// for clients that connect later. The tick loop calls this once per
// tick.
func (s *Server) Broadcast(frame ChartFrame) {
	s.hub.broadcastFrame(frame)
}

func (s *Server) applyAndBroadcast(ctx context.Context, cmd model.Command) model.Snapshot {
	ctx, span := startCommandSpan(ctx, cmd)
	defer span.End()
	snap := s.bench.Apply(ctx, cmd)
	s.Broadcast(BuildFrame(s.bench))
	return snap
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bench.Snapshot())
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var samples []model.Sample
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		samples = s.bench.TraceTail(limit)
	} else {
		samples = s.bench.TraceSamples()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(samples),
		"samples": samples,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bench.AssistantContext())
}

func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.bench.Params())
	case http.MethodPut:
		var params model.Parameters
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.bench.SetParams(r.Context(), params); err != nil {
			if errors.Is(err, bench.ErrInvalidParameter) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, s.bench.Params())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cmd, err := model.ParseCommand(req.Command)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := s.applyAndBroadcast(r.Context(), cmd)
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := renderIndex(w, s.bench.Snapshot()); err != nil {
		log := logging.LoggerFromContext(r.Context())
		if log == nil {
			log = s.log
		}
		log.Error(r.Context(), "rendering index page", logging.Err(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
