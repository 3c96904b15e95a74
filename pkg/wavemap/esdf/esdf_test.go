package esdf

import (
	"testing"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
)

// TestGenerateSingleObstacle mirrors spec scenario S4: one occupied leaf at
// the world origin, everything else free, D=2.0, min_cell_width=0.1.
func TestGenerateSingleObstacle(t *testing.T) {
	const minCellWidth = 0.1
	const treeHeight = 5 // side = 32 cells, 3.2m per axis — enough to reach the 2.0 cap along +x

	occ := volumetric.NewOctree(treeHeight, minCellWidth)
	occ.SetCellValue(geo.Index3D{0, 0, 0}, 1.0) // the single obstacle

	e := Generate(occ, Config{OccupancyThreshold: 0.5, MaxDistance: 2.0, TreeHeight: treeHeight})

	near := geo.Index3D{5, 0, 0} // 5 cells from the seed along x: exact BFS distance 0.5
	if d := e.GetCellValue(near); d < 0.4 || d > 0.6 {
		t.Errorf("distance at %v = %v, want in [0.4, 0.6]", near, d)
	}

	far := geo.Index3D{30, 0, 0} // 3.0m away, well past the 2.0 cap
	if d := e.GetCellValue(far); d != 2.0 {
		t.Errorf("distance at %v = %v, want exactly the 2.0 cap", far, d)
	}

	seed := geo.Index3D{0, 0, 0}
	if d := e.GetCellValue(seed); d != 0 {
		t.Errorf("distance at the obstacle itself = %v, want 0", d)
	}
}

// TestGenerateOnlyMaterializesOccupancyDomain checks the block-sparsity
// rule: a region the occupancy map never represented is absent from the
// ESDF entirely, not silently filled with the cap.
func TestGenerateOnlyMaterializesOccupancyDomain(t *testing.T) {
	occ := volumetric.NewMap(2, 0.1) // block side = 4
	occ.SetCellValue(geo.Index3D{0, 0, 0}, 1.0)

	e := Generate(occ, Config{OccupancyThreshold: 0.5, MaxDistance: 1.0})

	if !e.HasBlock(geo.Index3D{0, 0, 0}) {
		t.Fatalf("the occupied block should be materialized")
	}
	if e.HasBlock(geo.Index3D{100, 100, 100}) {
		t.Errorf("a block the occupancy map never touched should not appear in the ESDF")
	}
}

func TestGenerateClampsToZeroAndMaxDistance(t *testing.T) {
	occ := volumetric.NewOctree(3, 0.1)
	occ.SetCellValue(geo.Index3D{0, 0, 0}, 1.0)

	e := Generate(occ, Config{OccupancyThreshold: 0.5, MaxDistance: 0.5})
	e.IterateBlocks(func(_ geo.Index3D, _ geo.Index3D, v float32) bool {
		if v < 0 || v > 0.5 {
			t.Errorf("cell value %v out of [0, 0.5]", v)
		}
		return true
	})
}
