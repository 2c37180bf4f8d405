package constants

// This file contains constants for dispatch verdict reasons.
const (
	// Backend verdict reasons (pattern and alternate also accompany cache
	// verdicts)
	ReasonMiss           = "miss"
	ReasonBackendDeficit = "backend_deficit"
	ReasonPattern        = "pattern"
	ReasonCacheExhausted = "cache_quota_exhausted"
	ReasonAlternate      = "alternate"

	// Cache verdict reasons
	ReasonCacheDeficit     = "cache_deficit"
	ReasonBackendExhausted = "backend_quota_exhausted"
)
