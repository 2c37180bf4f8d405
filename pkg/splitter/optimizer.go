package splitter

import (
	"k8s.io/klog/v2"

	"netcas-hybrid-cache/splitter/pkg/constants"
)

// BandwidthLookup resolves expected IOPS for an operating point. splitPct is
// the percentage of traffic directed at the cache, 0..100.
type BandwidthLookup interface {
	Lookup(ioDepth, numJobs, splitPct uint64) uint64
}

// findBestSplitRatio computes the optimal cache fraction on the SplitScale
// scale from the bandwidth table's two endpoint rows. When the latency
// increase exceeds the congestion threshold, the backend contribution is
// discounted by the observed bandwidth drop.
func findBestSplitRatio(table BandwidthLookup, ioDepth, numJobs, bwDropPermil, latIncreasePermil uint64) uint64 {
	cacheIOPS := table.Lookup(ioDepth, numJobs, 100)
	backendIOPS := table.Lookup(ioDepth, numJobs, 0)

	if latIncreasePermil > constants.LatencyCongestionPermil {
		drop := bwDropPermil
		if drop > 1000 {
			drop = 1000
		}
		backendIOPS = backendIOPS * (1000 - drop) / 1000
		if debugEnabled() {
			klog.V(4).Infof("splitter: congestion penalty applied: backend iops discounted to %d (drop=%d permil)",
				backendIOPS, drop)
		}
	}

	total := cacheIOPS + backendIOPS
	if total == 0 {
		return constants.SplitScale
	}

	ratio := cacheIOPS * constants.SplitScale / total
	if ratio > constants.SplitScale {
		ratio = constants.SplitScale
	}
	return ratio
}
