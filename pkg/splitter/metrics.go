package splitter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"netcas-hybrid-cache/splitter/pkg/constants"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcas_splitter_dispatch_total",
			Help: "Dispatch verdicts by target device and decision reason.",
		},
		[]string{"target", "reason"},
	)

	splitRatioGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcas_splitter_split_ratio",
			Help: "Current split ratio on the 0..10000 scale (10000 = all cache).",
		},
	)

	modeGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcas_splitter_mode",
			Help: "Operating mode (0=idle 1=warmup 2=stable 3=congestion 4=failure).",
		},
	)

	modeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcas_splitter_mode_transitions_total",
			Help: "Mode transitions by edge.",
		},
		[]string{"from", "to"},
	)

	bwDropGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcas_splitter_bandwidth_drop_permil",
			Help: "Throughput drop below the best window average, in permil.",
		},
	)

	latIncreaseGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcas_splitter_latency_increase_permil",
			Help: "Latency increase above the established baseline, in permil.",
		},
	)
)

// Counters are resolved once per (target, reason) pair so the dispatch path
// never goes through WithLabelValues.
var (
	cacheCounters   map[string]prometheus.Counter
	backendCounters map[string]prometheus.Counter
)

func init() {
	cacheCounters = make(map[string]prometheus.Counter)
	for _, r := range []string{
		constants.ReasonCacheDeficit,
		constants.ReasonPattern,
		constants.ReasonBackendExhausted,
		constants.ReasonAlternate,
	} {
		cacheCounters[r] = dispatchTotal.WithLabelValues(string(constants.Cache), r)
	}

	backendCounters = make(map[string]prometheus.Counter)
	for _, r := range []string{
		constants.ReasonMiss,
		constants.ReasonBackendDeficit,
		constants.ReasonPattern,
		constants.ReasonCacheExhausted,
		constants.ReasonAlternate,
	} {
		backendCounters[r] = dispatchTotal.WithLabelValues(string(constants.Backend), r)
	}
}

func recordDispatch(backend bool, reason string) {
	if backend {
		if c, ok := backendCounters[reason]; ok {
			c.Inc()
		}
		return
	}
	if c, ok := cacheCounters[reason]; ok {
		c.Inc()
	}
}

func recordModeTransition(from, to Mode) {
	modeTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	modeGauge.Set(float64(to))
}
