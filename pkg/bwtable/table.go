package bwtable

import (
	"fmt"
	"sort"

	"k8s.io/klog/v2"
)

// Point identifies a measured operating point of the hybrid cache:
// a fio-style (io_depth, numjobs) pair.
type Point struct {
	IODepth uint64
	NumJobs uint64
}

func (p Point) String() string {
	return fmt.Sprintf("qd%d-j%d", p.IODepth, p.NumJobs)
}

// row is one measurement: expected IOPS when splitPct percent of the
// traffic goes to the cache device and the rest to the remote backend.
type row struct {
	splitPct uint64
	iops     uint64
}

// Table maps operating points to IOPS measurements across split ratios.
// It is immutable after load; lookups are total and never allocate, so the
// ratio optimizer can consult it from the control path without error
// handling.
type Table struct {
	points map[Point][]row // rows sorted by splitPct ascending
}

// Lookup returns the expected IOPS for the given operating point and cache
// split percentage (0..100). The (ioDepth, numJobs) pair must match a
// measured point exactly; splitPct resolves to the nearest measured row,
// preferring the lower row on ties. An unknown point returns 0.
func (t *Table) Lookup(ioDepth, numJobs, splitPct uint64) uint64 {
	rows, ok := t.points[Point{IODepth: ioDepth, NumJobs: numJobs}]
	if !ok || len(rows) == 0 {
		klog.V(5).Infof("bwtable: no rows for qd%d-j%d", ioDepth, numJobs)
		return 0
	}

	// Binary search for the first row at or above splitPct.
	i := sort.Search(len(rows), func(i int) bool {
		return rows[i].splitPct >= splitPct
	})

	if i == 0 {
		return rows[0].iops
	}
	if i == len(rows) {
		return rows[len(rows)-1].iops
	}
	if rows[i].splitPct == splitPct {
		return rows[i].iops
	}

	below := rows[i-1]
	above := rows[i]
	if splitPct-below.splitPct <= above.splitPct-splitPct {
		return below.iops
	}
	return above.iops
}

// Points returns the number of distinct operating points in the table.
func (t *Table) Points() int {
	return len(t.points)
}

// Empty reports whether the table holds no measurements at all. The caller
// is expected to leave the splitter in its all-to-cache default when true.
func (t *Table) Empty() bool {
	return len(t.points) == 0
}
