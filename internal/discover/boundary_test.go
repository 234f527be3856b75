package discover

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// Burst of activity at [800000,800050] in a million-block span: the
// finder must return the exact boundaries and the subdivider must emit a
// single active chunk.
func TestFindBoundsBurst(t *testing.T) {
	active := make([]uint64, 0, 51)
	for block := uint64(800000); block <= 800050; block++ {
		active = append(active, block)
	}
	provider := newFakeProvider(1000000, active...)
	provider.spanCap = 100000

	probe := NewProbe(provider, common.Address{0xaa}, nil)
	finder, err := NewBoundaryFinder(probe, 10000, nil)
	if err != nil {
		t.Fatalf("finder: %v", err)
	}

	bounds, found, err := finder.FindBounds(context.Background(), BlockInterval{Start: 0, End: 1000000}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("bounds not found")
	}
	if bounds.First != 800000 || bounds.Last != 800050 {
		t.Fatalf("bounds mismatch: [%d,%d]", bounds.First, bounds.Last)
	}

	subdivider := NewSubdivider(probe, 2000, nil)
	ranges, err := subdivider.Confirm(context.Background(), bounds, nil)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("expected one active chunk, got %d", len(ranges))
	}
	if ranges[0].Start != 800000 || ranges[0].End != 800050 || ranges[0].BlockCount != 51 {
		t.Fatalf("active range mismatch: %+v", ranges[0])
	}
}

func TestFindBoundsSingleActiveBlock(t *testing.T) {
	provider := newFakeProvider(500000, 123456)
	provider.spanCap = 50000

	probe := NewProbe(provider, common.Address{0xaa}, nil)
	finder, err := NewBoundaryFinder(probe, 5000, nil)
	if err != nil {
		t.Fatalf("finder: %v", err)
	}

	bounds, found, err := finder.FindBounds(context.Background(), BlockInterval{Start: 0, End: 500000}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || bounds.First != 123456 || bounds.Last != 123456 {
		t.Fatalf("bounds mismatch: %+v found=%v", bounds, found)
	}
}

func TestFindBoundsEmptyInterval(t *testing.T) {
	provider := newFakeProvider(1000000)
	provider.spanCap = 100000

	probe := NewProbe(provider, common.Address{0xaa}, nil)
	finder, err := NewBoundaryFinder(probe, 10000, nil)
	if err != nil {
		t.Fatalf("finder: %v", err)
	}

	_, found, err := finder.FindBounds(context.Background(), BlockInterval{Start: 0, End: 1000000}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("empty interval reported active")
	}
}

func TestFindFirstAndLastAtIntervalEdges(t *testing.T) {
	provider := newFakeProvider(100000, 0, 100000)
	provider.spanCap = 10000

	probe := NewProbe(provider, common.Address{0xaa}, nil)
	finder, err := NewBoundaryFinder(probe, 1000, nil)
	if err != nil {
		t.Fatalf("finder: %v", err)
	}

	first, found, err := finder.FindFirst(context.Background(), BlockInterval{Start: 0, End: 100000}, nil)
	if err != nil || !found || first != 0 {
		t.Fatalf("first mismatch: %d found=%v err=%v", first, found, err)
	}

	last, found, err := finder.FindLast(context.Background(), BlockInterval{Start: 0, End: 100000}, nil)
	if err != nil || !found || last != 100000 {
		t.Fatalf("last mismatch: %d found=%v err=%v", last, found, err)
	}
}
