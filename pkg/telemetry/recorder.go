package telemetry

import (
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Recorder accumulates ground-truth counters from the host cache engine.
// The backend I/O completion path calls RecordTransfer for every finished
// request; the splitter's monitor tick drains the counters into a
// PerfSample once per interval.
//
// The record path is constant-time and allocation-free.
type Recorder struct {
	mu sync.Mutex

	// Interval accounting, reset by Sample.
	bytes       uint64
	completions uint64
	latencyNs   uint64

	last PerfSample
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTransfer accounts one completed backend transfer.
func (r *Recorder) RecordTransfer(bytes uint64, latency time.Duration) {
	r.mu.Lock()
	r.bytes += bytes
	r.completions++
	if latency > 0 {
		r.latencyNs += uint64(latency.Nanoseconds())
	}
	r.mu.Unlock()
}

// Sample converts the counters accumulated since the previous call into a
// PerfSample and resets them. elapsedMs must be positive; callers pass the
// monitor interval.
func (r *Recorder) Sample(elapsedMs uint64) PerfSample {
	if elapsedMs == 0 {
		elapsedMs = 1
	}

	r.mu.Lock()
	bytes := r.bytes
	completions := r.completions
	latencyNs := r.latencyNs
	r.bytes = 0
	r.completions = 0
	r.latencyNs = 0

	s := PerfSample{WallMs: nowMs()}
	s.RDMAThroughput = bytes * 1000 / elapsedMs / (1 << 20)
	s.IOPS = completions * 1000 / elapsedMs
	if completions > 0 {
		s.RDMALatencyNs = latencyNs / completions
	}
	r.last = s
	r.mu.Unlock()

	klog.V(5).Infof("telemetry: sampled bw=%dMiB/s lat=%dns iops=%d over %dms",
		s.RDMAThroughput, s.RDMALatencyNs, s.IOPS, elapsedMs)
	return s
}

func (r *Recorder) LastSample() PerfSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
