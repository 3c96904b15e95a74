package volumetric

import (
	"testing"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
)

func TestMapUnallocatedBlockReadsZero(t *testing.T) {
	m := NewMap(3, 0.1)
	if v := m.GetCellValue(geo.Index3D{0, 0, 0}); v != 0 {
		t.Errorf("GetCellValue on empty map = %v, want 0", v)
	}
	if m.HasBlock(geo.Index3D{0, 0, 0}) {
		t.Errorf("HasBlock reported true before any allocation")
	}
	if n := m.NumBlocks(); n != 0 {
		t.Errorf("NumBlocks() = %d, want 0", n)
	}
}

func TestMapSetThenGetRoundTrips(t *testing.T) {
	m := NewMap(4, 0.1)
	idx := geo.Index3D{5, 2, 9}
	m.SetCellValue(idx, 2.5)
	if got := m.GetCellValue(idx); got != 2.5 {
		t.Errorf("GetCellValue(%v) = %v, want 2.5", idx, got)
	}
	if n := m.NumBlocks(); n != 1 {
		t.Errorf("NumBlocks() = %d, want 1 after a single write", n)
	}
}

func TestGetOrAllocateBlockIsIdempotent(t *testing.T) {
	m := NewMap(3, 0.1)
	idx := geo.Index3D{1, 1, 1}
	b1 := m.GetOrAllocateBlock(idx)
	b2 := m.GetOrAllocateBlock(idx)
	if b1 != b2 {
		t.Errorf("GetOrAllocateBlock(%v) returned different blocks on repeated calls", idx)
	}
}

func TestBlockIndexOfAndLocalRoundTrip(t *testing.T) {
	m := NewMap(3, 0.1) // block side = 8
	world := geo.Index3D{10, -3, 17}
	blockIdx, local := m.blockIndexOf(world)

	side := int32(8)
	for axis := 0; axis < 3; axis++ {
		if local[axis] < 0 || local[axis] >= side {
			t.Fatalf("local[%d] = %d out of [0,%d)", axis, local[axis], side)
		}
		reconstructed := blockIdx[axis]*side + local[axis]
		if reconstructed != world[axis] {
			t.Errorf("axis %d: blockIdx*side + local = %d, want %d", axis, reconstructed, world[axis])
		}
	}
}

func TestIterateBlocksVisitsWrittenValue(t *testing.T) {
	m := NewMap(2, 0.1)
	idx := geo.Index3D{1, 0, 3}
	m.SetCellValue(idx, 9)

	found := false
	_, local := m.blockIndexOf(idx)
	m.IterateBlocks(func(_ geo.Index3D, leaf geo.Index3D, v float32) bool {
		if leaf == local && v == 9 {
			found = true
		}
		return true
	})
	if !found {
		t.Errorf("did not find the written value while walking blocks")
	}
}

func TestMapPruneCollapsesBaselineBlocks(t *testing.T) {
	m := NewMap(2, 0.1)
	idx := geo.Index3D{1, 1, 1}
	m.SetCellValue(idx, 1)
	m.SetCellValue(idx, 0)
	m.Prune()

	b, ok := m.Block(geo.Index3D{0, 0, 0})
	if !ok {
		t.Fatalf("block should still exist after Prune (Prune never drops blocks)")
	}
	if b.RootNode.HasAtLeastOneChild() {
		t.Errorf("Prune did not collapse an all-baseline block back to a leaf-only root")
	}
}

func TestSizeBytesGrowsWithAllocatedNodes(t *testing.T) {
	m := NewMap(3, 0.1)
	before := m.SizeBytes()
	m.SetCellValue(geo.Index3D{0, 0, 0}, 1)
	after := m.SizeBytes()
	if after <= before {
		t.Errorf("SizeBytes() did not grow after a write: before=%d after=%d", before, after)
	}
}
