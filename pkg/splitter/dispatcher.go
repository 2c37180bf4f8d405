package splitter

import (
	"netcas-hybrid-cache/splitter/pkg/constants"
)

// dispatchState realizes the committed ratio deterministically over sliding
// 100-request windows. A quota pair tracks the per-window allowance while a
// short repeating pattern smooths the interleave; the expected-count check
// keeps the realized split within MaxPatternSize+1 of the target at any
// point inside the window. Callers hold the dispatch-path lock.
type dispatchState struct {
	requestCounter uint64
	total          uint64
	cacheCount     uint64
	backendCount   uint64
	cacheQuota     uint64
	backendQuota   uint64
	patternSize    uint64
	patternCache   uint64
	patternBackend uint64
	patternPos     uint64
	lastToCache    bool
}

func gcd(a, b uint64) uint64 {
	if a == 0 && b == 0 {
		return 1
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// initPattern derives the per-window plan for cache percentage p (0..100).
func (d *dispatchState) initPattern(p uint64) {
	a := p
	b := constants.WindowSize - p

	size := (a + b) / gcd(a, b)
	if size > constants.MaxPatternSize {
		size = constants.MaxPatternSize
	}

	d.patternSize = size
	d.patternCache = a * size / constants.WindowSize
	d.patternBackend = size - d.patternCache
	d.patternPos = 0
	d.total = 0
	d.cacheCount = 0
	d.backendCount = 0
	d.cacheQuota = a
	d.backendQuota = b
}

// decide returns (true, reason) to send the request to the backend. Misses
// bypass straight to the backend without consuming quota.
func (d *dispatchState) decide(p uint64, miss bool) (bool, string) {
	if d.requestCounter%constants.WindowSize == 0 || d.patternSize == 0 {
		d.initPattern(p)
	}
	d.requestCounter++
	d.total++

	if miss {
		return true, constants.ReasonMiss
	}

	expCache := d.total * p / constants.WindowSize
	expBackend := d.total - expCache

	if d.cacheCount < expCache {
		return d.commit(false, constants.ReasonCacheDeficit)
	}
	if d.backendCount < expBackend {
		return d.commit(true, constants.ReasonBackendDeficit)
	}

	if d.patternPos < d.patternSize {
		backend := d.patternPos >= d.patternCache
		d.patternPos = (d.patternPos + 1) % d.patternSize
		return d.commit(backend, constants.ReasonPattern)
	}

	switch {
	case d.cacheQuota == 0:
		return d.commit(true, constants.ReasonCacheExhausted)
	case d.backendQuota == 0:
		return d.commit(false, constants.ReasonBackendExhausted)
	default:
		// Alternate off the previous verdict.
		return d.commit(d.lastToCache, constants.ReasonAlternate)
	}
}

func (d *dispatchState) commit(backend bool, reason string) (bool, string) {
	if backend {
		if d.backendQuota > 0 {
			d.backendQuota--
		}
		d.backendCount++
		d.lastToCache = false
	} else {
		if d.cacheQuota > 0 {
			d.cacheQuota--
		}
		d.cacheCount++
		d.lastToCache = true
	}
	return backend, reason
}
