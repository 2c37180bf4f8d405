package splitter

import (
	"sync/atomic"

	"netcas-hybrid-cache/splitter/pkg/constants"
)

// ratioStore publishes the committed split ratio to the dispatch path
// without taking the control-path lock. The ratio is scaled so that
// constants.SplitScale means all requests go to the cache.
type ratioStore struct {
	v atomic.Uint64
}

func (r *ratioStore) load() uint64 {
	return r.v.Load()
}

func (r *ratioStore) store(ratio uint64) {
	if ratio > constants.SplitScale {
		ratio = constants.SplitScale
	}
	r.v.Store(ratio)
}
