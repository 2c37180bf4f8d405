package splitter

import (
	"testing"

	"netcas-hybrid-cache/splitter/pkg/constants"
)

type stubTable struct {
	cache   uint64
	backend uint64
}

func (s stubTable) Lookup(_, _, splitPct uint64) uint64 {
	switch splitPct {
	case 100:
		return s.cache
	case 0:
		return s.backend
	default:
		return 0
	}
}

func TestFindBestSplitRatio(t *testing.T) {
	table := stubTable{cache: 9000, backend: 1000}

	if got := findBestSplitRatio(table, 16, 1, 0, 0); got != 9000 {
		t.Errorf("expected ratio 9000, got %d", got)
	}
}

func TestFindBestSplitRatio_CongestionPenalty(t *testing.T) {
	table := stubTable{cache: 9000, backend: 1000}

	// At the congestion threshold (not above it) the drop is ignored.
	if got := findBestSplitRatio(table, 16, 1, 500, constants.LatencyCongestionPermil); got != 9000 {
		t.Errorf("expected no penalty at threshold, got %d", got)
	}

	// Above it the backend contribution is discounted by the drop.
	got := findBestSplitRatio(table, 16, 1, 500, constants.LatencyCongestionPermil+10)
	want := uint64(9000 * constants.SplitScale / (9000 + 500))
	if got != want {
		t.Errorf("expected penalized ratio %d, got %d", want, got)
	}
}

func TestFindBestSplitRatio_DropClamped(t *testing.T) {
	table := stubTable{cache: 9000, backend: 1000}

	// A drop beyond 1000 permil zeroes the backend instead of wrapping.
	if got := findBestSplitRatio(table, 16, 1, 5000, 100); got != constants.SplitScale {
		t.Errorf("expected full-cache ratio, got %d", got)
	}
}

func TestFindBestSplitRatio_EmptyTable(t *testing.T) {
	if got := findBestSplitRatio(stubTable{}, 16, 1, 0, 0); got != constants.SplitScale {
		t.Errorf("expected safe default %d, got %d", constants.SplitScale, got)
	}
}
