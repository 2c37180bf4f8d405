package splitter

import (
	"math"

	"k8s.io/klog/v2"

	"netcas-hybrid-cache/splitter/pkg/constants"
)

// movingWindow is a fixed-capacity ring over the most recent WindowSize
// samples with a running sum and average. Callers hold the control-path
// lock; the window itself is not thread-safe.
type movingWindow struct {
	buf   [constants.WindowSize]uint64
	idx   int
	count int
	sum   uint64
	avg   uint64
}

func (w *movingWindow) push(v uint64) {
	if w.count < len(w.buf) {
		w.count++
	} else {
		w.sum -= w.buf[w.idx]
	}
	w.buf[w.idx] = v
	w.sum += v
	w.avg = w.sum / uint64(w.count)
	w.idx = (w.idx + 1) % len(w.buf)
}

func (w *movingWindow) full() bool {
	return w.count >= len(w.buf)
}

func (w *movingWindow) reset() {
	*w = movingWindow{}
}

// throughputWindow tracks interconnect throughput and remembers the best
// window average ever seen as the uncongested reference.
type throughputWindow struct {
	movingWindow
	maxAvg uint64
}

func (w *throughputWindow) push(v uint64) {
	w.movingWindow.push(v)
	if w.avg > w.maxAvg {
		w.maxAvg = w.avg
		if debugEnabled() {
			klog.V(4).Infof("splitter: new max throughput average: %d", w.maxAvg)
		}
	}
}

func (w *throughputWindow) reset() {
	w.movingWindow.reset()
	w.maxAvg = 0
}

// dropPermil reports how far the current window average has fallen below the
// best average ever observed, in permil. 0 when no reference exists or the
// current average is at or above it.
func (w *throughputWindow) dropPermil() uint64 {
	if w.maxAvg == 0 || w.avg >= w.maxAvg {
		return 0
	}
	return (w.maxAvg - w.avg) * 1000 / w.maxAvg
}

// latencyWindow tracks interconnect latency and establishes the minimum
// window average as the uncongested baseline. The baseline is deferred
// until LatencyStabilizationSamples pushes have been seen so a transient startup
// latency is not frozen as the reference.
type latencyWindow struct {
	movingWindow
	samplesSeen uint64
	established bool
	minAvg      uint64
}

func newLatencyWindow() latencyWindow {
	return latencyWindow{minAvg: math.MaxUint64}
}

func (w *latencyWindow) push(v uint64) {
	w.movingWindow.push(v)
	w.samplesSeen++

	if w.samplesSeen < constants.LatencyStabilizationSamples {
		return
	}

	if !w.established {
		if w.avg > 0 {
			w.minAvg = w.avg
			w.established = true
			if debugEnabled() {
				klog.V(4).Infof("splitter: latency baseline established: %d (after %d samples)",
					w.minAvg, w.samplesSeen)
			}
		} else if debugEnabled() {
			klog.V(4).Infof("splitter: waiting for valid latency value (current: %d)", w.avg)
		}
		return
	}

	if w.avg < w.minAvg {
		w.minAvg = w.avg
		if debugEnabled() {
			klog.V(4).Infof("splitter: new min latency: %d", w.minAvg)
		}
	}
}

// increasePermil reports how far the current window average has risen above
// the established baseline, in permil. 0 before the baseline exists or when
// the current average is at or below it.
func (w *latencyWindow) increasePermil() uint64 {
	if !w.established || w.minAvg == 0 || w.minAvg == math.MaxUint64 {
		return 0
	}
	if w.avg <= w.minAvg {
		return 0
	}
	return (w.avg - w.minAvg) * 1000 / w.minAvg
}

func (w *latencyWindow) reset() {
	w.movingWindow.reset()
	w.samplesSeen = 0
	w.established = false
	w.minAvg = math.MaxUint64
}
