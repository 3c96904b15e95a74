package volumetric

import "github.com/nospelt/wavemap/pkg/wavemap/geo"

// WaveletOctree is the un-hashed sibling of Map: a single wavelet-compressed
// octree of fixed height, with no block-coordinate hashing layer above it.
// It exists to exercise the wavelet representation (package wavelet) and the
// DataStructure capability set independently of the sharded block store —
// the integrator never targets it directly (spec.md §9's "polymorphism over
// map variants" reserves coarse-to-fine integration for the hashed variant).
type WaveletOctree struct {
	TreeHeight   int
	MinCellWidth float32

	block *Block
}

// NewWaveletOctree returns an empty (all-baseline) wavelet octree of the
// given height.
func NewWaveletOctree(treeHeight int, minCellWidth float32) *WaveletOctree {
	return &WaveletOctree{TreeHeight: treeHeight, MinCellWidth: minCellWidth, block: NewBlock()}
}

func (w *WaveletOctree) inRange(idx geo.Index3D) bool {
	side := int32(1) << uint(w.TreeHeight)
	for axis := 0; axis < 3; axis++ {
		if idx[axis] < 0 || idx[axis] >= side {
			return false
		}
	}
	return true
}

// GetCellValue implements DataStructure. Indices outside the tree's single
// covered cube read as 0 (unknown), the same convention Map uses for
// unallocated blocks.
func (w *WaveletOctree) GetCellValue(idx geo.Index3D) float32 {
	if !w.inRange(idx) {
		return 0
	}
	return descendScale(w.block.RootNode, w.block.RootScale, w.TreeHeight, idx)
}

// SetCellValue writes v at idx, refining the tree as needed. Out-of-range
// indices are silently ignored — there is nowhere else for them to go since
// this variant has no hashing layer to grow into.
func (w *WaveletOctree) SetCellValue(idx geo.Index3D, v float32) {
	if !w.inRange(idx) {
		return
	}
	setScale(&w.block.RootNode, &w.block.RootScale, w.TreeHeight, idx, v)
}

// GetMinCellWidth implements DataStructure.
func (w *WaveletOctree) GetMinCellWidth() float32 {
	return w.MinCellWidth
}

// BlockSide implements DataStructure.
func (w *WaveletOctree) BlockSide() int {
	return 1 << uint(w.TreeHeight)
}

// IterateBlocks implements DataStructure. WaveletOctree has exactly one
// logical block, at index (0,0,0).
func (w *WaveletOctree) IterateBlocks(f func(blockIdx geo.Index3D, leafIdx geo.Index3D, value float32) bool) {
	walkNode(w.block.RootNode, w.block.RootScale, geo.OctreeIndex{Height: w.TreeHeight}, func(leaf geo.Index3D, v float32) bool {
		return f(geo.Index3D{}, leaf, v)
	})
}

// Prune collapses all-baseline subtrees back to nil, mirroring Map.Prune.
func (w *WaveletOctree) Prune() {
	pruneNode(w.block.RootNode)
}
