package splitter

import (
	"testing"

	"netcas-hybrid-cache/splitter/pkg/constants"
	"netcas-hybrid-cache/splitter/pkg/telemetry"
)

type fakeClock struct {
	ms uint64
}

func (c *fakeClock) NowMs() uint64 { return c.ms }

type fakeCollector struct {
	sample telemetry.PerfSample
	calls  int
}

func (f *fakeCollector) Sample(_ uint64) telemetry.PerfSample {
	f.calls++
	return f.sample
}

func (f *fakeCollector) LastSample() telemetry.PerfSample { return f.sample }

var (
	idleSample = telemetry.PerfSample{RDMAThroughput: 50, RDMALatencyNs: 0, IOPS: 500}
	busySample = telemetry.PerfSample{RDMAThroughput: 10000, RDMALatencyNs: 500000, IOPS: 10000}
)

func newTestSplitter() (*Splitter, *fakeClock, *fakeCollector) {
	clock := &fakeClock{ms: constants.MonitorIntervalMs}
	col := &fakeCollector{sample: idleSample}
	sp := New(Config{
		Collector: col,
		Table:     stubTable{cache: 9000, backend: 1000},
		Clock:     clock,
	})
	return sp, clock, col
}

func tick(sp *Splitter, clock *fakeClock) {
	sp.UpdateSplitRatio(Request{})
	clock.ms += constants.MonitorIntervalMs
}

func TestIdle_HoldsFullCacheRatio(t *testing.T) {
	sp, clock, _ := newTestSplitter()

	tick(sp, clock)

	if sp.Mode() != ModeIdle {
		t.Fatalf("expected idle, got %s", sp.Mode())
	}
	if sp.Ratio() != constants.SplitScale {
		t.Fatalf("expected ratio %d, got %d", constants.SplitScale, sp.Ratio())
	}
}

func TestIdleToWarmup_RecomputesRatio(t *testing.T) {
	sp, clock, col := newTestSplitter()
	tick(sp, clock)

	col.sample = telemetry.PerfSample{RDMAThroughput: 200, RDMALatencyNs: 500000, IOPS: 2000}
	tick(sp, clock)

	if sp.Mode() != ModeWarmup {
		t.Fatalf("expected warmup, got %s", sp.Mode())
	}
	// 9000 / (9000 + 1000) on the 10000 scale.
	if sp.Ratio() != 9000 {
		t.Fatalf("expected ratio 9000, got %d", sp.Ratio())
	}
}

func TestWarmupToStable_OnFullWindow(t *testing.T) {
	sp, clock, col := newTestSplitter()
	col.sample = busySample

	for i := 0; i < constants.WindowSize; i++ {
		tick(sp, clock)
	}

	if sp.Mode() != ModeStable {
		t.Fatalf("expected stable after %d ticks, got %s", constants.WindowSize, sp.Mode())
	}
	if sp.Ratio() != 9000 {
		t.Fatalf("expected ratio 9000, got %d", sp.Ratio())
	}

	snap := sp.Snapshot()
	if !snap.LatencyEstablished {
		t.Error("latency baseline not established after a full window")
	}
	if snap.BWMax == 0 {
		t.Error("expected a throughput reference")
	}
}

func TestStableToCongestion_AppliesPenalty(t *testing.T) {
	sp, clock, col := newTestSplitter()
	col.sample = busySample
	for i := 0; i < constants.WindowSize; i++ {
		tick(sp, clock)
	}
	if sp.Mode() != ModeStable {
		t.Fatalf("precondition: expected stable, got %s", sp.Mode())
	}

	// Latency doubles while throughput sags.
	col.sample = telemetry.PerfSample{RDMAThroughput: 5000, RDMALatencyNs: 1000000, IOPS: 10000}
	for i := 0; i < 30 && sp.Mode() != ModeCongestion; i++ {
		tick(sp, clock)
	}
	if sp.Mode() != ModeCongestion {
		t.Fatalf("expected congestion, got %s", sp.Mode())
	}

	// A few more ticks so the congested recompute runs with a visible drop.
	for i := 0; i < 10; i++ {
		tick(sp, clock)
	}
	if sp.Ratio() <= 9000 {
		t.Fatalf("expected penalized ratio above 9000, got %d", sp.Ratio())
	}
}

func TestCongestionRecovery_ReturnsToStable(t *testing.T) {
	sp, clock, col := newTestSplitter()
	col.sample = busySample
	for i := 0; i < constants.WindowSize; i++ {
		tick(sp, clock)
	}
	col.sample = telemetry.PerfSample{RDMAThroughput: 5000, RDMALatencyNs: 1000000, IOPS: 10000}
	for i := 0; i < 30 && sp.Mode() != ModeCongestion; i++ {
		tick(sp, clock)
	}
	if sp.Mode() != ModeCongestion {
		t.Fatalf("precondition: expected congestion, got %s", sp.Mode())
	}

	col.sample = busySample
	for i := 0; i < 2*constants.WindowSize && sp.Mode() != ModeStable; i++ {
		tick(sp, clock)
	}
	if sp.Mode() != ModeStable {
		t.Fatalf("expected recovery to stable, got %s", sp.Mode())
	}
}

func TestLowTraffic_DropsToIdleFromAnyMode(t *testing.T) {
	sp, clock, col := newTestSplitter()
	col.sample = busySample
	for i := 0; i < constants.WindowSize; i++ {
		tick(sp, clock)
	}
	if sp.Mode() != ModeStable {
		t.Fatalf("precondition: expected stable, got %s", sp.Mode())
	}

	col.sample = idleSample
	tick(sp, clock)

	if sp.Mode() != ModeIdle {
		t.Fatalf("expected idle on low traffic, got %s", sp.Mode())
	}
}

func TestTick_RateLimited(t *testing.T) {
	sp, clock, col := newTestSplitter()

	sp.UpdateSplitRatio(Request{})
	sp.UpdateSplitRatio(Request{})
	sp.UpdateSplitRatio(Request{})
	if col.calls != 1 {
		t.Fatalf("expected 1 sample within one interval, got %d", col.calls)
	}

	clock.ms += constants.MonitorIntervalMs - 1
	sp.UpdateSplitRatio(Request{})
	if col.calls != 1 {
		t.Fatalf("expected no sample before the interval elapses, got %d", col.calls)
	}

	clock.ms++
	sp.UpdateSplitRatio(Request{})
	if col.calls != 2 {
		t.Fatalf("expected a second sample after the interval, got %d", col.calls)
	}
}

func TestShouldSendToBackend_MissBypass(t *testing.T) {
	sp, _, _ := newTestSplitter()

	if !sp.ShouldSendToBackend(Request{Key: "a", Miss: true}) {
		t.Fatal("miss must be sent to the backend")
	}
	if sp.ShouldSendToBackend(Request{Key: "b"}) {
		t.Fatal("hit must stay on the cache at full-cache ratio")
	}
}

func TestReset_RestoresInitialState(t *testing.T) {
	sp, clock, col := newTestSplitter()
	col.sample = busySample
	for i := 0; i < constants.WindowSize; i++ {
		tick(sp, clock)
	}
	for i := 0; i < 250; i++ {
		sp.ShouldSendToBackend(Request{Key: "k"})
	}

	sp.Reset()

	if sp.Mode() != ModeIdle {
		t.Errorf("expected idle after reset, got %s", sp.Mode())
	}
	if sp.Ratio() != constants.SplitScale {
		t.Errorf("expected ratio %d after reset, got %d", constants.SplitScale, sp.Ratio())
	}
	snap := sp.Snapshot()
	if snap.Total != 0 || snap.RequestCounter != 0 || snap.BWMax != 0 || snap.LatencyEstablished {
		t.Errorf("reset left residual state: %+v", snap)
	}

	// The next dispatch must sample immediately, as after construction.
	before := col.calls
	sp.UpdateSplitRatio(Request{})
	if col.calls != before+1 {
		t.Error("expected an immediate sample after reset")
	}
}
