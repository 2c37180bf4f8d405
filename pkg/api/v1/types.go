// Package v1 defines the JSON types of the splitter's control API.
package v1

// DispatchRequest asks the splitter where one cache request should be
// served. Miss carries the host engine's lookup result.
type DispatchRequest struct {
	Key   string `json:"key"`
	Miss  bool   `json:"miss"`
	Bytes uint64 `json:"bytes,omitempty"`
}

// DispatchVerdict is the splitter's answer. Target is "cache" or "backend";
// Ratio is the split ratio the verdict was computed against, on the 0..10000
// scale.
type DispatchVerdict struct {
	Backend bool   `json:"backend"`
	Target  string `json:"target"`
	Ratio   uint64 `json:"ratio"`
}

// TransferReport accounts one completed backend transfer so the splitter's
// sampler sees ground-truth throughput and latency.
type TransferReport struct {
	Bytes     uint64 `json:"bytes"`
	LatencyNs uint64 `json:"latencyNs"`
}

// DebugRequest switches verbose logging. Level 0 disables, anything above
// enables.
type DebugRequest struct {
	Level int `json:"level"`
}
