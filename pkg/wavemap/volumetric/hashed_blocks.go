package volumetric

import (
	"sync"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
)

// HashedBlocks is a dense, uncompressed sibling of the wavelet-compressed
// Map: each allocated block holds a flat [side*side*side]float32 array, no
// wavelet transform involved. The ESDF generator (package esdf) produces
// its output in this representation, since a distance field has no
// free-space baseline worth compressing away.
type HashedBlocks struct {
	TreeHeight   int
	MinCellWidth float32

	mu     sync.RWMutex
	blocks map[geo.Index3D][]float32
}

// NewHashedBlocks returns an empty store. treeHeight fixes the block side
// length to 1<<treeHeight cells per axis.
func NewHashedBlocks(treeHeight int, minCellWidth float32) *HashedBlocks {
	return &HashedBlocks{TreeHeight: treeHeight, MinCellWidth: minCellWidth, blocks: make(map[geo.Index3D][]float32)}
}

// BlockSide is the number of cells per axis in one block.
func (hb *HashedBlocks) BlockSide() int {
	return 1 << uint(hb.TreeHeight)
}

// CellsPerBlock is BlockSide cubed.
func (hb *HashedBlocks) CellsPerBlock() int {
	side := hb.BlockSide()
	return side * side * side
}

func (hb *HashedBlocks) blockIndexOf(idx geo.Index3D) (blockIdx, local geo.Index3D) {
	shift := uint(hb.TreeHeight)
	side := int32(1) << shift
	blockIdx = geo.Index3D{idx[0] >> shift, idx[1] >> shift, idx[2] >> shift}
	local = geo.Index3D{idx[0] - blockIdx[0]*side, idx[1] - blockIdx[1]*side, idx[2] - blockIdx[2]*side}
	return
}

// GetCellValue implements DataStructure. Unallocated blocks read as 0.
func (hb *HashedBlocks) GetCellValue(idx geo.Index3D) float32 {
	blockIdx, local := hb.blockIndexOf(idx)
	hb.mu.RLock()
	arr, ok := hb.blocks[blockIdx]
	hb.mu.RUnlock()
	if !ok {
		return 0
	}
	return arr[geo.Index3DToLinearIndex(local, hb.BlockSide())]
}

// SetCellValue writes v at idx, allocating the block's dense array on first
// write.
func (hb *HashedBlocks) SetCellValue(idx geo.Index3D, v float32) {
	blockIdx, local := hb.blockIndexOf(idx)
	hb.mu.Lock()
	defer hb.mu.Unlock()
	arr, ok := hb.blocks[blockIdx]
	if !ok {
		arr = make([]float32, hb.CellsPerBlock())
		hb.blocks[blockIdx] = arr
	}
	arr[geo.Index3DToLinearIndex(local, hb.BlockSide())] = v
}

// GetMinCellWidth implements DataStructure.
func (hb *HashedBlocks) GetMinCellWidth() float32 {
	return hb.MinCellWidth
}

// IterateBlocks implements DataStructure.
func (hb *HashedBlocks) IterateBlocks(f func(blockIdx geo.Index3D, leafIdx geo.Index3D, value float32) bool) {
	type kv struct {
		idx geo.Index3D
		arr []float32
	}
	hb.mu.RLock()
	items := make([]kv, 0, len(hb.blocks))
	for k, v := range hb.blocks {
		items = append(items, kv{k, v})
	}
	hb.mu.RUnlock()

	side := hb.BlockSide()
	for _, it := range items {
		for linear, val := range it.arr {
			if !f(it.idx, geo.LinearIndexToIndex3D(linear, side), val) {
				return
			}
		}
	}
}

// HasBlock reports whether idx has an allocated dense array.
func (hb *HashedBlocks) HasBlock(idx geo.Index3D) bool {
	hb.mu.RLock()
	defer hb.mu.RUnlock()
	_, ok := hb.blocks[idx]
	return ok
}

// BlockIndices snapshots the set of allocated block coordinates — used by
// the collision-free sampler to draw a uniform block when no AABB is given.
func (hb *HashedBlocks) BlockIndices() []geo.Index3D {
	hb.mu.RLock()
	defer hb.mu.RUnlock()
	out := make([]geo.Index3D, 0, len(hb.blocks))
	for k := range hb.blocks {
		out = append(out, k)
	}
	return out
}

// BlockArray returns the raw dense array for idx, if allocated.
func (hb *HashedBlocks) BlockArray(idx geo.Index3D) ([]float32, bool) {
	hb.mu.RLock()
	defer hb.mu.RUnlock()
	arr, ok := hb.blocks[idx]
	return arr, ok
}

// IndexFromBlockAndLocal reconstructs the global cell index from a block
// coordinate and a cell index local to it, the inverse of blockIndexOf —
// mirrors computeIndexFromBlockIndexAndCellIndex, used by the collision-free
// sampler when it draws a uniformly random occupied block and cell.
func (hb *HashedBlocks) IndexFromBlockAndLocal(blockIdx, local geo.Index3D) geo.Index3D {
	side := int32(hb.BlockSide())
	return geo.Index3D{
		blockIdx[0]*side + local[0],
		blockIdx[1]*side + local[1],
		blockIdx[2]*side + local[2],
	}
}
