package splitter

import (
	"math"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"

	"netcas-hybrid-cache/splitter/pkg/constants"
	"netcas-hybrid-cache/splitter/pkg/telemetry"
)

// Request is the opaque per-request handle the host cache engine passes into
// the dispatch path.
type Request struct {
	// Key identifies the cache line or object the request touches.
	Key string
	// Miss is set by the host engine's lookup before dispatch.
	Miss bool
	// Bytes is the transfer size, used only for logging.
	Bytes uint64
}

// Classifier answers whether a request is a cache miss. Misses always go to
// the backend and never consume dispatch quota.
type Classifier interface {
	IsMiss(req Request) bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(req Request) bool

func (f ClassifierFunc) IsMiss(req Request) bool { return f(req) }

// declaredMiss trusts the Miss flag the host engine set on the request.
type declaredMiss struct{}

func (declaredMiss) IsMiss(req Request) bool { return req.Miss }

// Config carries the collaborators and tunables for a Splitter. New fills
// zero-value Classifier, Clock, IODepth and NumJobs with defaults; Collector
// and Table have no default and must be set.
type Config struct {
	// Collector produces one performance sample per monitor interval.
	Collector telemetry.Collector
	// Table resolves expected IOPS per operating point.
	Table BandwidthLookup
	// Classifier decides hit/miss per request. Defaults to trusting
	// Request.Miss.
	Classifier Classifier
	// Clock is the monotonic millisecond source. Defaults to a process
	// clock biased so the first dispatch samples immediately.
	Clock Clock

	// IODepth and NumJobs select the bandwidth table operating point.
	IODepth uint64
	NumJobs uint64

	// CachingFailed forces the failure mode once traffic is flowing. The
	// host engine sets this when the cache device is unusable.
	CachingFailed bool
}

// Splitter decides, per request, whether the host cache engine should serve
// from the local cache device or send the request over the interconnect to
// the backend. The split ratio adapts to measured interconnect congestion.
//
// The dispatch path and the control path are guarded by separate locks; the
// committed ratio crosses between them through an atomic store.
type Splitter struct {
	cfg Config

	ratio ratioStore

	dmu   sync.Mutex
	state dispatchState

	cmu            sync.Mutex
	bw             throughputWindow
	lat            latencyWindow
	mode           Mode
	initialized    bool
	stableCalcDone bool
	lastMonitorMs  uint64
	lastLogMs      uint64
	lastSample     telemetry.PerfSample
	bwDropPermil   uint64
	latIncPermil   uint64
}

// New constructs a Splitter in the idle state with the ratio at full cache.
func New(cfg Config) *Splitter {
	if cfg.Classifier == nil {
		cfg.Classifier = declaredMiss{}
	}
	if cfg.Clock == nil {
		cfg.Clock = newMonotonicClock()
	}
	if cfg.IODepth == 0 {
		cfg.IODepth = constants.DefaultIODepth
	}
	if cfg.NumJobs == 0 {
		cfg.NumJobs = constants.DefaultNumJobs
	}

	s := &Splitter{
		cfg:  cfg,
		lat:  newLatencyWindow(),
		mode: ModeIdle,
	}
	s.ratio.store(constants.SplitScale)
	splitRatioGauge.Set(float64(constants.SplitScale))
	modeGauge.Set(float64(ModeIdle))
	return s
}

// ShouldSendToBackend returns true when the request must be served by the
// remote backend. Safe under concurrent callers; constant-time apart from
// the rate-limited periodic tick.
func (s *Splitter) ShouldSendToBackend(req Request) bool {
	s.UpdateSplitRatio(req)

	p := s.ratio.load() / 100
	miss := s.cfg.Classifier.IsMiss(req)

	s.dmu.Lock()
	backend, reason := s.state.decide(p, miss)
	s.dmu.Unlock()

	recordDispatch(backend, reason)
	if debugEnabled() {
		klog.V(5).Infof("splitter: dispatch key=%q bytes=%d backend=%t reason=%s p=%d", req.Key, req.Bytes, backend, reason, p)
	}
	return backend
}

// UpdateSplitRatio runs the periodic tick. Repeated calls inside one monitor
// interval are no-ops beyond the first.
func (s *Splitter) UpdateSplitRatio(_ Request) {
	now := s.cfg.Clock.NowMs()

	s.cmu.Lock()
	defer s.cmu.Unlock()

	if now-s.lastMonitorMs >= constants.MonitorIntervalMs {
		elapsed := now - s.lastMonitorMs
		if s.lastMonitorMs == 0 {
			elapsed = constants.MonitorIntervalMs
		}
		s.lastMonitorMs = now
		s.monitorTick(elapsed)
	}
	if now-s.lastLogMs >= constants.LogIntervalMs {
		s.lastLogMs = now
		s.logTick()
	}
}

// monitorTick pulls one sample, refreshes windows and derived metrics, steps
// the mode machine and applies its ratio action. Caller holds cmu.
func (s *Splitter) monitorTick(elapsedMs uint64) {
	sample := s.cfg.Collector.Sample(elapsedMs)
	s.lastSample = sample

	s.bw.push(sample.RDMAThroughput)
	s.lat.push(sample.RDMALatencyNs)

	s.bwDropPermil = s.bw.dropPermil()
	s.latIncPermil = s.lat.increasePermil()
	bwDropGauge.Set(float64(s.bwDropPermil))
	latIncreaseGauge.Set(float64(s.latIncPermil))

	s.stepMode(sample)
	s.applyModeAction()
}

// stepMode evaluates the transition rules in priority order. Low traffic
// always wins; the failure flag is consulted last.
func (s *Splitter) stepMode(sample telemetry.PerfSample) {
	next := s.mode
	switch {
	case sample.RDMAThroughput <= constants.RDMAThroughputLow && sample.IOPS <= constants.IOPSLow:
		next = ModeIdle
	case s.mode == ModeIdle:
		next = ModeWarmup
		s.initialized = false
	case s.mode == ModeWarmup && s.bw.full():
		next = ModeStable
		s.stableCalcDone = false
	case s.mode == ModeCongestion && s.latIncPermil < constants.LatencyRecoveryPermil:
		next = ModeStable
		s.stableCalcDone = false
	case s.mode == ModeStable && s.latIncPermil > constants.LatencyCongestionPermil:
		next = ModeCongestion
		s.stableCalcDone = true
	case s.cfg.CachingFailed && s.mode != ModeIdle:
		next = ModeFailure
	}

	if next != s.mode {
		if debugEnabled() {
			klog.V(4).Infof("splitter: mode %s -> %s (bw=%d iops=%d drop=%d latinc=%d)",
				s.mode, next, sample.RDMAThroughput, sample.IOPS, s.bwDropPermil, s.latIncPermil)
		}
		recordModeTransition(s.mode, next)
		s.mode = next
	}
}

func (s *Splitter) applyModeAction() {
	switch s.mode {
	case ModeIdle:
		if !s.initialized {
			s.commitRatio(constants.SplitScale)
			s.initialized = true
		}
	case ModeWarmup:
		// No-contention assumption while baselines are still forming.
		s.recomputeRatio(0, 0)
	case ModeStable:
		if !s.stableCalcDone && s.bw.full() {
			s.recomputeRatio(s.bwDropPermil, s.latIncPermil)
			s.stableCalcDone = true
		}
	case ModeCongestion:
		if s.bw.full() {
			s.recomputeRatio(s.bwDropPermil, s.latIncPermil)
		}
	case ModeFailure:
		// Retain the last committed ratio.
	}
}

func (s *Splitter) recomputeRatio(dropPermil, latIncPermil uint64) {
	r := findBestSplitRatio(s.cfg.Table, s.cfg.IODepth, s.cfg.NumJobs, dropPermil, latIncPermil)
	if r != s.ratio.load() {
		s.commitRatio(r)
	}
}

func (s *Splitter) commitRatio(r uint64) {
	s.ratio.store(r)
	splitRatioGauge.Set(float64(r))
	if debugEnabled() {
		klog.V(4).Infof("splitter: split ratio committed: %d", r)
	}
}

// logTick emits the once-per-second operator line. Caller holds cmu.
func (s *Splitter) logTick() {
	minLat := s.lat.minAvg
	if minLat == math.MaxUint64 {
		minLat = 0
	}
	klog.Infof("splitter: mode=%s ratio=%d bw=%dMiB/s avg=%d max=%d lat=%dns avg=%d min=%d iops=%d drop=%d latinc=%d",
		s.mode, s.ratio.load(),
		s.lastSample.RDMAThroughput, s.bw.avg, s.bw.maxAvg,
		s.lastSample.RDMALatencyNs, s.lat.avg, minLat,
		s.lastSample.IOPS, s.bwDropPermil, s.latIncPermil)
}

// Ratio returns the current committed split ratio on the 0..10000 scale.
func (s *Splitter) Ratio() uint64 {
	return s.ratio.load()
}

// Mode returns the current operating mode.
func (s *Splitter) Mode() Mode {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	return s.mode
}

// Reset returns the splitter to its post-construction state. Serialized
// against in-flight dispatches.
func (s *Splitter) Reset() {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	s.dmu.Lock()
	s.state = dispatchState{}
	s.dmu.Unlock()

	s.bw.reset()
	s.lat.reset()
	s.mode = ModeIdle
	s.initialized = false
	s.stableCalcDone = false
	s.lastMonitorMs = 0
	s.lastLogMs = 0
	s.lastSample = telemetry.PerfSample{}
	s.bwDropPermil = 0
	s.latIncPermil = 0
	s.commitRatio(constants.SplitScale)
	modeGauge.Set(float64(ModeIdle))

	klog.V(2).Info("splitter: reset to initial state")
}

// Snapshot is a point-in-time view of splitter state for the status surface.
type Snapshot struct {
	Mode  string `json:"mode"`
	Ratio uint64 `json:"ratio"`

	RequestCounter uint64 `json:"requestCounter"`
	Total          uint64 `json:"total"`
	CacheCount     uint64 `json:"cacheCount"`
	BackendCount   uint64 `json:"backendCount"`
	CacheQuota     uint64 `json:"cacheQuota"`
	BackendQuota   uint64 `json:"backendQuota"`
	PatternSize    uint64 `json:"patternSize"`
	PatternPos     uint64 `json:"patternPos"`

	BWAvg              uint64 `json:"bwAvg"`
	BWMax              uint64 `json:"bwMax"`
	LatAvg             uint64 `json:"latAvg"`
	LatMin             uint64 `json:"latMin"`
	LatencyEstablished bool   `json:"latencyEstablished"`
	BWDropPermil       uint64 `json:"bwDropPermil"`
	LatIncreasePermil  uint64 `json:"latIncreasePermil"`

	LastSample telemetry.PerfSample `json:"lastSample"`
}

func (s *Splitter) Snapshot() Snapshot {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	s.dmu.Lock()
	st := s.state
	s.dmu.Unlock()

	minLat := s.lat.minAvg
	if minLat == math.MaxUint64 {
		minLat = 0
	}

	return Snapshot{
		Mode:  s.mode.String(),
		Ratio: s.ratio.load(),

		RequestCounter: st.requestCounter,
		Total:          st.total,
		CacheCount:     st.cacheCount,
		BackendCount:   st.backendCount,
		CacheQuota:     st.cacheQuota,
		BackendQuota:   st.backendQuota,
		PatternSize:    st.patternSize,
		PatternPos:     st.patternPos,

		BWAvg:              s.bw.avg,
		BWMax:              s.bw.maxAvg,
		LatAvg:             s.lat.avg,
		LatMin:             minLat,
		LatencyEstablished: s.lat.established,
		BWDropPermil:       s.bwDropPermil,
		LatIncreasePermil:  s.latIncPermil,

		LastSample: s.lastSample,
	}
}

var debugLevel atomic.Int32

// SetDebug switches verbose control-loop logging on (level > 0) or off.
func SetDebug(level int) {
	debugLevel.Store(int32(level))
	klog.V(2).Infof("splitter: debug level set to %d", level)
}

func debugEnabled() bool {
	return debugLevel.Load() > 0
}
