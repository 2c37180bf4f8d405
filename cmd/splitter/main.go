package main

import (
	"context"
	goflag "flag"
	"net/http"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"netcas-hybrid-cache/splitter/pkg/bwtable"
	"netcas-hybrid-cache/splitter/pkg/constants"
	"netcas-hybrid-cache/splitter/pkg/server"
	"netcas-hybrid-cache/splitter/pkg/signals"
	"netcas-hybrid-cache/splitter/pkg/splitter"
	"netcas-hybrid-cache/splitter/pkg/telemetry"
	"netcas-hybrid-cache/splitter/pkg/util"
)

var (
	listenAddr    string
	tablePath     string
	probeEndpoint string
	probeTTL      time.Duration
	ioDepth       uint64
	numJobs       uint64
	dispatchRate  float64
	dispatchBurst int
	debugLevel    int
	cachingFailed bool
)

func main() {
	klog.InitFlags(nil)
	pflag.StringVar(&listenAddr, "listen",
		util.GetEnvOrDefault("SPLITTER_LISTEN", ":8380"), "HTTP listen address")
	pflag.StringVar(&tablePath, "bandwidth-table",
		util.GetEnvOrDefault("SPLITTER_BANDWIDTH_TABLE", ""),
		"Path to the bandwidth table YAML; built-in reference table when empty")
	pflag.StringVar(&probeEndpoint, "probe-endpoint",
		util.GetEnvOrDefault("SPLITTER_PROBE_ENDPOINT", ""),
		"Backend host for the interconnect latency probe; disabled when empty")
	pflag.DurationVar(&probeTTL, "probe-ttl",
		util.GetEnvDuration("SPLITTER_PROBE_TTL", 10*time.Second),
		"How long a probe RTT measurement stays valid")
	pflag.Uint64Var(&ioDepth, "io-depth",
		util.GetEnvUint64("SPLITTER_IO_DEPTH", constants.DefaultIODepth),
		"I/O depth operating point for bandwidth table lookups")
	pflag.Uint64Var(&numJobs, "numjobs",
		util.GetEnvUint64("SPLITTER_NUMJOBS", constants.DefaultNumJobs),
		"Job count operating point for bandwidth table lookups")
	pflag.Float64Var(&dispatchRate, "dispatch-rate", 50000,
		"Dispatch requests per second before rate limiting")
	pflag.IntVar(&dispatchBurst, "dispatch-burst", 10000,
		"Dispatch rate limiter burst size")
	pflag.IntVar(&debugLevel, "debug", 0,
		"Verbose control-loop logging (0 disables)")
	pflag.BoolVar(&cachingFailed, "caching-failed", false,
		"Force the failure mode once traffic is flowing")
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	pflag.Parse()

	// Setup signal handler
	stopCh := signals.SetupSignalHandler()

	table := bwtable.Default()
	if tablePath != "" {
		var err error
		table, err = bwtable.Load(tablePath)
		if err != nil {
			klog.Fatalf("Error loading bandwidth table: %s", err.Error())
		}
	} else {
		klog.Info("No bandwidth table given, using built-in reference measurements")
	}

	recorder := telemetry.NewRecorder()
	var probe *telemetry.Probe
	if probeEndpoint != "" {
		probe = telemetry.NewProbe(probeEndpoint, probeTTL)
	}
	collector := telemetry.NewCombined(recorder, probe)

	splitter.SetDebug(debugLevel)
	split := splitter.New(splitter.Config{
		Collector:     collector,
		Table:         table,
		IODepth:       ioDepth,
		NumJobs:       numJobs,
		CachingFailed: cachingFailed,
	})

	srv := server.NewServer(split, recorder,
		rate.NewLimiter(rate.Limit(dispatchRate), dispatchBurst))
	httpSrv := &http.Server{
		Addr:    listenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		klog.Infof("Splitter listening on %s (io_depth=%d numjobs=%d)", listenAddr, ioDepth, numJobs)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("Error running HTTP server: %s", err.Error())
		}
	}()

	<-stopCh
	klog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		klog.Errorf("HTTP server shutdown: %v", err)
	}
}
