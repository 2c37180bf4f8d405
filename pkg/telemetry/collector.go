package telemetry

import (
	"time"
)

// PerfSample is one interval measurement of the interconnect and the
// backend I/O path. RDMALatencyNs == 0 means no valid latency was observed
// in the interval.
type PerfSample struct {
	// RDMAThroughput is the observed interconnect throughput in MiB/s.
	RDMAThroughput uint64
	// RDMALatencyNs is the mean completion latency over the interval.
	RDMALatencyNs uint64
	// IOPS is the completion rate over the interval.
	IOPS uint64
	// WallMs is the wall-clock timestamp the sample was taken at.
	WallMs uint64
}

// Collector produces periodic performance samples for the splitter's
// monitor tick.
type Collector interface {
	// Sample measures the activity of the last elapsedMs milliseconds and
	// resets interval accounting. Called at most once per monitor interval.
	Sample(elapsedMs uint64) PerfSample

	// LastSample returns the most recent measurement without touching
	// interval accounting.
	LastSample() PerfSample
}

// Combined measures from a Recorder and falls back to an interconnect Probe
// for latency when the recorder saw no backend completions in the interval.
type Combined struct {
	recorder *Recorder
	probe    *Probe
}

func NewCombined(recorder *Recorder, probe *Probe) *Combined {
	return &Combined{recorder: recorder, probe: probe}
}

func (c *Combined) Sample(elapsedMs uint64) PerfSample {
	s := c.recorder.Sample(elapsedMs)
	if s.RDMALatencyNs == 0 && c.probe != nil {
		s.RDMALatencyNs = c.probe.RTTNs()
	}
	return s
}

// LastSample returns the recorder's most recent sample. The probe latency
// fallback that Sample applies is not applied here.
func (c *Combined) LastSample() PerfSample {
	return c.recorder.LastSample()
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}
