// Package server exposes the splitter to the host cache engine over HTTP:
// the dispatch hot path, the transfer completion feed, and the control
// surface (status, reset, debug).
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	apiv1 "netcas-hybrid-cache/splitter/pkg/api/v1"
	"netcas-hybrid-cache/splitter/pkg/constants"
	"netcas-hybrid-cache/splitter/pkg/splitter"
	"netcas-hybrid-cache/splitter/pkg/telemetry"
)

type Server struct {
	split    *splitter.Splitter
	recorder *telemetry.Recorder
	limiter  *rate.Limiter
}

func NewServer(split *splitter.Splitter, recorder *telemetry.Recorder, limiter *rate.Limiter) *Server {
	return &Server{
		split:    split,
		recorder: recorder,
		limiter:  limiter,
	}
}

// Handler returns the mux with all routes registered, including the
// Prometheus scrape endpoint and the liveness probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/dispatch", s.handleDispatch)
	mux.HandleFunc("/v1/complete", s.handleComplete)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/reset", s.handleReset)
	mux.HandleFunc("/v1/debug", s.handleDebug)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handleHealthz)
	return mux
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		dispatchLatency.Observe(time.Since(start).Seconds())
	}()

	if !s.limiter.Allow() {
		klog.Warning("Dispatch rate limit exceeded")
		dispatchRateLimited.Inc()
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req apiv1.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		klog.Errorf("Failed to decode dispatch request: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	backend := s.split.ShouldSendToBackend(splitter.Request{
		Key:   req.Key,
		Miss:  req.Miss,
		Bytes: req.Bytes,
	})

	target := constants.Cache
	if backend {
		target = constants.Backend
	}
	writeJSON(w, apiv1.DispatchVerdict{
		Backend: backend,
		Target:  string(target),
		Ratio:   s.split.Ratio(),
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var rep apiv1.TransferReport
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		klog.Errorf("Failed to decode transfer report: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.recorder.RecordTransfer(rep.Bytes, time.Duration(rep.LatencyNs))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.split.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	klog.Infof("Reset requested from %s", r.RemoteAddr)
	s.split.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req apiv1.DebugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	klog.Infof("Debug level set to %d from %s", req.Level, r.RemoteAddr)
	splitter.SetDebug(req.Level)
	w.WriteHeader(http.StatusNoContent)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
