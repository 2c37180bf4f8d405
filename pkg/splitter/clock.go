package splitter

import (
	"time"

	"netcas-hybrid-cache/splitter/pkg/constants"
)

// Clock is a monotonic millisecond source. Wall-clock jumps must not affect
// interval arithmetic.
type Clock interface {
	NowMs() uint64
}

// monotonicClock measures elapsed milliseconds from a fixed start point so
// the readings inherit time.Since's monotonic behavior. The start is biased
// one monitor interval into the past so the very first dispatch after init
// triggers an immediate sample.
type monotonicClock struct {
	start time.Time
}

func newMonotonicClock() *monotonicClock {
	bias := time.Duration(constants.MonitorIntervalMs) * time.Millisecond
	return &monotonicClock{start: time.Now().Add(-bias)}
}

func (c *monotonicClock) NowMs() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}
