package bwtable

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// File format:
//
//	measurements:
//	  - io_depth: 16
//	    numjobs: 1
//	    rows:
//	      - { split_pct: 0, iops: 118000 }
//	      - { split_pct: 100, iops: 605000 }
type tableFile struct {
	Measurements []measurement `yaml:"measurements"`
}

type measurement struct {
	IODepth uint64    `yaml:"io_depth"`
	NumJobs uint64    `yaml:"numjobs"`
	Rows    []fileRow `yaml:"rows"`
}

type fileRow struct {
	SplitPct uint64 `yaml:"split_pct"`
	IOPS     uint64 `yaml:"iops"`
}

// Load reads a bandwidth table from a YAML measurement file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bandwidth table: %w", err)
	}

	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse bandwidth table %s: %w", path, err)
	}

	t := &Table{points: make(map[Point][]row)}
	for _, m := range tf.Measurements {
		if m.IODepth == 0 || m.NumJobs == 0 {
			return nil, fmt.Errorf("bandwidth table %s: io_depth and numjobs must be positive", path)
		}
		p := Point{IODepth: m.IODepth, NumJobs: m.NumJobs}
		for _, r := range m.Rows {
			if r.SplitPct > 100 {
				return nil, fmt.Errorf("bandwidth table %s: split_pct %d out of range for %s", path, r.SplitPct, p)
			}
			t.points[p] = append(t.points[p], row{splitPct: r.SplitPct, iops: r.IOPS})
		}
	}

	for p, rows := range t.points {
		sort.Slice(rows, func(i, j int) bool { return rows[i].splitPct < rows[j].splitPct })
		t.points[p] = rows
	}

	klog.Infof("Loaded bandwidth table from %s: %d operating points", path, len(t.points))
	return t, nil
}

// Default returns the built-in measurement set from the pmem/nvme-over-RDMA
// reference rig, so the daemon can run without a table file. Cache-only rows
// reflect local persistent memory; backend-only rows reflect remote NVMe
// reached over the interconnect.
func Default() *Table {
	type anchor struct {
		cacheOnly   uint64 // IOPS at split_pct=100
		backendOnly uint64 // IOPS at split_pct=0
	}

	anchors := map[Point]anchor{
		{IODepth: 1, NumJobs: 1}:  {cacheOnly: 92000, backendOnly: 21000},
		{IODepth: 4, NumJobs: 1}:  {cacheOnly: 255000, backendOnly: 58000},
		{IODepth: 8, NumJobs: 1}:  {cacheOnly: 410000, backendOnly: 87000},
		{IODepth: 16, NumJobs: 1}: {cacheOnly: 605000, backendOnly: 118000},
		{IODepth: 32, NumJobs: 1}: {cacheOnly: 690000, backendOnly: 124000},
		{IODepth: 1, NumJobs: 2}:  {cacheOnly: 178000, backendOnly: 40000},
		{IODepth: 4, NumJobs: 2}:  {cacheOnly: 470000, backendOnly: 101000},
		{IODepth: 8, NumJobs: 2}:  {cacheOnly: 655000, backendOnly: 121000},
		{IODepth: 16, NumJobs: 2}: {cacheOnly: 742000, backendOnly: 126000},
		{IODepth: 32, NumJobs: 2}: {cacheOnly: 760000, backendOnly: 127000},
		{IODepth: 4, NumJobs: 4}:  {cacheOnly: 688000, backendOnly: 120000},
		{IODepth: 8, NumJobs: 4}:  {cacheOnly: 752000, backendOnly: 125000},
		{IODepth: 16, NumJobs: 4}: {cacheOnly: 781000, backendOnly: 127000},
	}

	t := &Table{points: make(map[Point][]row, len(anchors))}
	for p, a := range anchors {
		rows := make([]row, 0, 11)
		for pct := uint64(0); pct <= 100; pct += 10 {
			// Linear blend between the measured endpoints. Real mixed-ratio
			// rows from a measurement run override this via Load.
			iops := (a.backendOnly*(100-pct) + a.cacheOnly*pct) / 100
			rows = append(rows, row{splitPct: pct, iops: iops})
		}
		t.points[p] = rows
	}
	return t
}
