package constants

// This file centralizes the tunables of the splitter control loop. The
// defaults match the measured operating point of the pmem/nvme test rig the
// splitter was calibrated on.

const (
	// SplitScale is the resolution of the split ratio: 10000 = 100% of
	// eligible requests served from the cache device.
	SplitScale uint64 = 10000

	// WindowSize is both the moving-average window capacity (samples) and
	// the dispatch accounting window (requests).
	WindowSize = 100

	// MaxPatternSize bounds the repeating cache/backend pattern length.
	MaxPatternSize = 10

	// MonitorIntervalMs rate-limits telemetry sampling and ratio updates.
	MonitorIntervalMs uint64 = 100
	// LogIntervalMs rate-limits the human-readable status line.
	LogIntervalMs uint64 = 1000

	// RDMAThroughputLow and IOPSLow: at or below both, the interconnect is idle.
	RDMAThroughputLow uint64 = 100
	IOPSLow           uint64 = 1000

	// Latency thresholds in permil increase over the established baseline.
	LatencyCongestionPermil uint64 = 70
	LatencyRecoveryPermil   uint64 = 50

	// Bandwidth drop thresholds in permil. Reserved: the mode logic keys
	// congestion entry and exit off latency only.
	BandwidthCongestionPermil uint64 = 90
	BandwidthRecoveryPermil   uint64 = 70

	// LatencyStabilizationSamples is how many latency samples must be seen
	// before the minimum-latency baseline may be established.
	LatencyStabilizationSamples = 40

	// DefaultIODepth and DefaultNumJobs select the bandwidth-table rows
	// used by the ratio optimizer.
	DefaultIODepth uint64 = 16
	DefaultNumJobs uint64 = 1
)
