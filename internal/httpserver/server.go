// Package httpserver exposes a small status surface while a benchmark run is
// in progress: health endpoints, run progress, the latest telemetry sample,
// and optional Prometheus metrics.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wattbench/wattbench/internal/bench"
	"github.com/wattbench/wattbench/internal/config"
	"github.com/wattbench/wattbench/internal/gpu"
	"github.com/wattbench/wattbench/internal/telemetry"
	"github.com/wattbench/wattbench/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// Server wraps the HTTP surface area of the application.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	gpus       []gpu.Info
	sampler    *telemetry.Sampler
	tracker    *bench.Tracker

	requestIDs atomic.Uint64
}

// New assembles a Server with its handlers. The sampler may be nil when
// telemetry is disabled; status responses then omit the sample section.
func New(cfg config.Config, logger *slog.Logger, gpus []gpu.Info, sampler *telemetry.Sampler, tracker *bench.Tracker) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		gpus:    gpus,
		sampler: sampler,
		tracker: tracker,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/gpus", s.handleGPUs)

	if cfg.EnablePrometheus {
		s.registerPrometheus(mux)
	}
	if cfg.EnablePprof {
		registerPprof(mux)
	}

	handler := s.withRequestLogging(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start begins serving HTTP until shutdown is requested.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("listener stopped")
	return nil
}

// Shutdown attempts a graceful shutdown within the supplied context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	info := s.readiness()
	logger := s.loggerFromContext(r.Context())

	statusCode := http.StatusOK
	if info.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		logger.Error("failed to encode readyz response", "err", err)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	info := version.Current()
	logger := s.loggerFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		logger.Error("failed to encode version response", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
}

type statusResponse struct {
	Run      bench.Snapshot    `json:"run"`
	Backend  string            `json:"backend,omitempty"`
	Sample   *telemetry.Sample `json:"sample,omitempty"`
	GPUCount int               `json:"gpus"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	resp := statusResponse{
		Run:      s.tracker.Snapshot(),
		GPUCount: len(s.gpus),
	}
	if s.sampler != nil {
		resp.Backend = s.sampler.Backend()
		if sample, ok := s.sampler.Latest(); ok {
			resp.Sample = &sample
		}
	}

	logger := s.loggerFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode status response", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
}

func (s *Server) handleGPUs(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	logger := s.loggerFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	gpus := s.gpus
	if gpus == nil {
		gpus = []gpu.Info{}
	}
	if err := json.NewEncoder(w).Encode(gpus); err != nil {
		logger.Error("failed to encode gpu list", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) registerPrometheus(mux *http.ServeMux) {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "wattbench",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served since start.",
	}, func() float64 {
		return float64(s.requestIDs.Load())
	}))

	if collector := newTelemetryCollector(s.sampler); collector != nil {
		registry.MustRegister(collector)
	}

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

func registerPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func (s *Server) readiness() readyResponse {
	resp := readyResponse{
		GPUs: len(s.gpus),
	}

	if s.sampler == nil {
		resp.Status = "ok"
		resp.Reason = "telemetry_disabled"
		return resp
	}

	if _, ok := s.sampler.Latest(); ok {
		resp.Status = "ok"
		return resp
	}

	resp.Status = "initializing"
	resp.Reason = "waiting_for_samples"
	return resp
}

type readyResponse struct {
	Status string `json:"status"`
	GPUs   int    `json:"gpus"`
	Reason string `json:"reason,omitempty"`
}
