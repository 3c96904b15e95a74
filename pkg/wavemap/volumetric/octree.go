package volumetric

import "github.com/nospelt/wavemap/pkg/wavemap/geo"

// octreeNode is a plain (non-wavelet) octree node: each child slot is either
// nil, meaning "uniform field at this node's value", or an allocated child
// subtree. Unlike Node, a node's value is stored directly rather than as a
// transform coefficient — there is nothing to compress here.
type octreeNode struct {
	children [8]*octreeNode
	value    float32
}

// Octree is the minimal, non-hashed, uncompressed sibling of Map: one
// fixed-height tree rooted at the world origin, covering a single
// contiguous cube with no block-coordinate sparsity layer above it. It
// exists so the config factory and TypeMismatchError (spec.md §7) have a
// real, exercised alternative to Map and WaveletOctree, not a stub.
type Octree struct {
	TreeHeight   int
	MinCellWidth float32

	root *octreeNode
}

// NewOctree returns an empty (all-zero) octree of the given height.
func NewOctree(treeHeight int, minCellWidth float32) *Octree {
	return &Octree{TreeHeight: treeHeight, MinCellWidth: minCellWidth, root: &octreeNode{}}
}

func (o *Octree) inRange(idx geo.Index3D) bool {
	side := int32(1) << uint(o.TreeHeight)
	for axis := 0; axis < 3; axis++ {
		if idx[axis] < 0 || idx[axis] >= side {
			return false
		}
	}
	return true
}

// GetCellValue implements DataStructure.
func (o *Octree) GetCellValue(idx geo.Index3D) float32 {
	if !o.inRange(idx) {
		return 0
	}
	n := o.root
	for h := o.TreeHeight; h > 0; h-- {
		rel := relativeChildAt(idx, h)
		if n.children[rel] == nil {
			return n.value
		}
		n = n.children[rel]
	}
	return n.value
}

// SetCellValue writes v at idx, allocating nodes down to the leaf.
func (o *Octree) SetCellValue(idx geo.Index3D, v float32) {
	if !o.inRange(idx) {
		return
	}
	n := o.root
	for h := o.TreeHeight; h > 0; h-- {
		rel := relativeChildAt(idx, h)
		if n.children[rel] == nil {
			n.children[rel] = &octreeNode{value: n.value}
		}
		n = n.children[rel]
	}
	n.value = v
}

// GetMinCellWidth implements DataStructure.
func (o *Octree) GetMinCellWidth() float32 {
	return o.MinCellWidth
}

// BlockSide implements DataStructure.
func (o *Octree) BlockSide() int {
	return 1 << uint(o.TreeHeight)
}

// IterateBlocks implements DataStructure. Octree has exactly one logical
// block, at index (0,0,0).
func (o *Octree) IterateBlocks(f func(blockIdx geo.Index3D, leafIdx geo.Index3D, value float32) bool) {
	o.walk(o.root, geo.OctreeIndex{Height: o.TreeHeight}, f)
}

func (o *Octree) walk(n *octreeNode, idx geo.OctreeIndex, f func(geo.Index3D, geo.Index3D, float32) bool) bool {
	if idx.Height == 0 {
		return f(geo.Index3D{}, idx.Position, n.value)
	}
	allLeaf := true
	for _, c := range n.children {
		if c != nil {
			allLeaf = false
			break
		}
	}
	if allLeaf {
		return o.walkUniform(idx, n.value, f)
	}
	for i, childIdx := range geo.ChildIndices(idx) {
		child := n.children[i]
		if child == nil {
			if !o.walkUniform(childIdx, n.value, f) {
				return false
			}
			continue
		}
		if !o.walk(child, childIdx, f) {
			return false
		}
	}
	return true
}

func (o *Octree) walkUniform(idx geo.OctreeIndex, v float32, f func(geo.Index3D, geo.Index3D, float32) bool) bool {
	if idx.Height == 0 {
		return f(geo.Index3D{}, idx.Position, v)
	}
	for _, c := range geo.ChildIndices(idx) {
		if !o.walkUniform(c, v, f) {
			return false
		}
	}
	return true
}
