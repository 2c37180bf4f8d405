package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"k8s.io/klog/v2"
)

// Probe measures round-trip latency to the remote backend over the
// interconnect. It is the latency source of last resort: when the host
// engine exposes no per-request completion times, the splitter still needs
// a congestion signal.
type Probe struct {
	endpoint string
	cacheMu  sync.RWMutex
	rttNs    uint64
	measured time.Time
	cacheTTL time.Duration
}

func NewProbe(endpoint string, ttl time.Duration) *Probe {
	p := &Probe{
		endpoint: endpoint,
		cacheTTL: ttl,
	}

	// Single initial probe
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = p.refresh(ctx)
	cancel()

	// Background refresh
	go p.probeLoop()
	return p
}

func (p *Probe) probeLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = p.refresh(ctx)
		cancel()
	}
}

// refresh performs ICMP pings using go-ping and updates the cached RTT
func (p *Probe) refresh(ctx context.Context) error {
	pinger, err := ping.NewPinger(p.endpoint)
	if err != nil {
		klog.Warningf("NewPinger failed: %v", err)
		return err
	}
	// Without CAP_NET_RAW, unprivileged mode uses a UDP fallback on many
	// platforms. SetPrivileged(true) if NET_RAW is granted.
	pinger.SetPrivileged(false)
	pinger.Count = 3
	pinger.Timeout = 2 * time.Second
	pinger.Interval = 200 * time.Millisecond

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		klog.Warningf("Probe run failed: %v", err)
		return err
	}
	close(done)

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		klog.Warningf("Probe to %s lost all packets", p.endpoint)
		return nil
	}

	p.cacheMu.Lock()
	p.rttNs = uint64(stats.AvgRtt.Nanoseconds())
	p.measured = time.Now()
	p.cacheMu.Unlock()

	klog.V(5).Infof("telemetry: probe rtt=%dns to %s", uint64(stats.AvgRtt.Nanoseconds()), p.endpoint)
	return nil
}

// RTTNs returns the last measured round-trip time in nanoseconds, or 0 when
// the measurement is stale or none succeeded yet.
func (p *Probe) RTTNs() uint64 {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	if p.measured.IsZero() || time.Since(p.measured) > p.cacheTTL {
		return 0
	}
	return p.rttNs
}
