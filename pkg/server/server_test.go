package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	apiv1 "netcas-hybrid-cache/splitter/pkg/api/v1"
	"netcas-hybrid-cache/splitter/pkg/bwtable"
	"netcas-hybrid-cache/splitter/pkg/splitter"
	"netcas-hybrid-cache/splitter/pkg/telemetry"
)

type fakeCollector struct {
	sample telemetry.PerfSample
}

func (f *fakeCollector) Sample(_ uint64) telemetry.PerfSample { return f.sample }

func (f *fakeCollector) LastSample() telemetry.PerfSample { return f.sample }

func newTestServer() (*Server, *telemetry.Recorder) {
	rec := telemetry.NewRecorder()
	split := splitter.New(splitter.Config{
		Collector: &fakeCollector{},
		Table:     bwtable.Default(),
	})
	return NewServer(split, rec, rate.NewLimiter(1000, 1000)), rec
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDispatch_HitStaysOnCache(t *testing.T) {
	s, _ := newTestServer()
	h := s.Handler()

	w := postJSON(t, h, "/v1/dispatch", apiv1.DispatchRequest{Key: "obj-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body: %s", w.Code, w.Body.String())
	}

	var v apiv1.DispatchVerdict
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal verdict: %v", err)
	}
	if v.Backend {
		t.Error("hit sent to the backend at full-cache ratio")
	}
	if v.Target != "cache" {
		t.Errorf("expected target cache, got %q", v.Target)
	}
	if v.Ratio != 10000 {
		t.Errorf("expected ratio 10000, got %d", v.Ratio)
	}
}

func TestDispatch_MissGoesToBackend(t *testing.T) {
	s, _ := newTestServer()

	w := postJSON(t, s.Handler(), "/v1/dispatch", apiv1.DispatchRequest{Key: "obj-2", Miss: true})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var v apiv1.DispatchVerdict
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal verdict: %v", err)
	}
	if !v.Backend || v.Target != "backend" {
		t.Errorf("expected backend verdict for a miss, got %+v", v)
	}
}

func TestDispatch_RateLimited(t *testing.T) {
	rec := telemetry.NewRecorder()
	split := splitter.New(splitter.Config{
		Collector: &fakeCollector{},
		Table:     bwtable.Default(),
	})
	s := NewServer(split, rec, rate.NewLimiter(0, 0))

	w := postJSON(t, s.Handler(), "/v1/dispatch", apiv1.DispatchRequest{Key: "x"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestDispatch_RejectsBadInput(t *testing.T) {
	s, _ := newTestServer()
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/dispatch", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/dispatch", bytes.NewReader([]byte("{")))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for truncated JSON, got %d", w.Code)
	}
}

func TestComplete_FeedsRecorder(t *testing.T) {
	s, rec := newTestServer()

	w := postJSON(t, s.Handler(), "/v1/complete", apiv1.TransferReport{Bytes: 1 << 20, LatencyNs: 1000000})
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	sample := rec.Sample(1000)
	if sample.IOPS != 1 {
		t.Errorf("expected 1 completion, got %d", sample.IOPS)
	}
	if sample.RDMALatencyNs != 1000000 {
		t.Errorf("expected 1ms latency, got %d", sample.RDMALatencyNs)
	}
}

func TestStatus_ReportsSnapshot(t *testing.T) {
	s, _ := newTestServer()
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var snap splitter.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to unmarshal snapshot: %v", err)
	}
	if snap.Mode != "idle" {
		t.Errorf("expected idle mode, got %q", snap.Mode)
	}
	if snap.Ratio != 10000 {
		t.Errorf("expected ratio 10000, got %d", snap.Ratio)
	}
}

func TestResetAndDebug(t *testing.T) {
	s, _ := newTestServer()
	h := s.Handler()

	// Dispatch a few requests so reset has something to clear.
	for i := 0; i < 5; i++ {
		postJSON(t, h, "/v1/dispatch", apiv1.DispatchRequest{Key: "k"})
	}

	if w := postJSON(t, h, "/v1/reset", struct{}{}); w.Code != http.StatusNoContent {
		t.Fatalf("reset: unexpected status %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var snap splitter.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to unmarshal snapshot: %v", err)
	}
	if snap.Total != 0 || snap.RequestCounter != 0 {
		t.Errorf("reset left dispatch counters: %+v", snap)
	}

	if w := postJSON(t, h, "/v1/debug", apiv1.DebugRequest{Level: 1}); w.Code != http.StatusNoContent {
		t.Errorf("debug: unexpected status %d", w.Code)
	}
	splitter.SetDebug(0)

	// A JSON string is not a DebugRequest object; the decoder rejects it.
	if w := postJSON(t, h, "/v1/debug", "not-json-object"); w.Code != http.StatusBadRequest {
		t.Errorf("debug: expected 400 for bad body, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
