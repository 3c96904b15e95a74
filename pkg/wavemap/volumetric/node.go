// Package volumetric is the hashed wavelet octree block store: the sparse
// map from block coordinate to wavelet-compressed octree, plus three
// minimal sibling data-structure variants that share its DataStructure
// capability interface.
package volumetric

import (
	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/wavelet"
)

// Node is one internal node of a wavelet octree. Its Details are the 7
// wavelet detail coefficients describing the spread among its own 8
// children; the node's own scale coefficient is held by its parent (or, for
// a block's root, by the enclosing Block) and reconstructed on demand via
// wavelet.Backward. childMask bit i is set iff Children[i] != nil — 8
// children fit a single byte, so no bitset type is needed for this.
type Node struct {
	Details   wavelet.Details
	Children  [8]*Node
	childMask uint8
}

// HasChild reports whether child i is allocated.
func (n *Node) HasChild(i uint8) bool {
	return n.childMask&(1<<i) != 0
}

// HasAtLeastOneChild reports whether any child is allocated. A node with no
// children and all-zero details is equivalent to a constant field and need
// not exist at all (see Prune).
func (n *Node) HasAtLeastOneChild() bool {
	return n.childMask != 0
}

// SetChild assigns child i, keeping childMask consistent.
func (n *Node) SetChild(i uint8, child *Node) {
	n.Children[i] = child
	if child != nil {
		n.childMask |= 1 << i
	} else {
		n.childMask &^= 1 << i
	}
}

// AllocateChild returns child i, creating it first if absent.
func (n *Node) AllocateChild(i uint8) *Node {
	if n.Children[i] == nil {
		n.SetChild(i, &Node{})
	}
	return n.Children[i]
}

// Block is one fixed-height block of the hashed map: a root scale
// coefficient plus the wavelet octree hanging off it. The root node always
// exists (a block with no further refinement is a uniform field at
// RootScale, represented by an allocated root with a zero childMask and
// zero details).
type Block struct {
	RootScale float32
	RootNode  *Node
}

// NewBlock returns a freshly allocated, uniform (all-baseline) block.
func NewBlock() *Block {
	return &Block{RootNode: &Node{}}
}

// relativeChildAt extracts the 3-bit child selector for descending one
// level from height h to h-1, given a cell's local position (already
// relative to the current subtree's own origin).
func relativeChildAt(local geo.Index3D, h int) uint8 {
	var rel uint8
	for axis := 0; axis < 3; axis++ {
		if (local[axis]>>uint(h-1))&1 != 0 {
			rel |= 1 << uint(axis)
		}
	}
	return rel
}

// descendScale walks from (node, scale) at height down to height 0 along
// local, reconstructing the leaf's scale coefficient via repeated wavelet
// backward transforms. A nil node at any level means the remaining subtree
// is an unrefined baseline, so its value is just the scale already reached.
func descendScale(node *Node, scale float32, height int, local geo.Index3D) float32 {
	for h := height; h > 0; h-- {
		if node == nil {
			return scale
		}
		rel := relativeChildAt(local, h)
		children := wavelet.Backward(scale, node.Details)
		scale = children[rel]
		node = node.Children[rel]
	}
	return scale
}

// setScale writes v at the leaf reached by descending along target from
// height, allocating nodes as needed and re-deriving every ancestor's scale
// and details on the way back up. It is a plain, unconditional refine-to-leaf
// used by the SetCellValue setters of Map and WaveletOctree; the integrator
// itself uses the gated recursiveSamplerCompressor instead.
func setScale(nodePtr **Node, scale *float32, height int, target geo.Index3D, v float32) {
	if height == 0 {
		*scale = v
		return
	}
	if *nodePtr == nil {
		*nodePtr = &Node{}
	}
	node := *nodePtr
	children := wavelet.Backward(*scale, node.Details)
	rel := relativeChildAt(target, height)

	setScale(&node.Children[rel], &children[rel], height-1, target, v)
	if node.Children[rel] != nil {
		node.childMask |= 1 << rel
	} else {
		node.childMask &^= 1 << rel
	}

	newScale, newDetails := wavelet.Forward(children)
	node.Details = newDetails
	*scale = newScale
}

// walkNode visits every leaf reachable from (node, scale, idx), calling f
// with the leaf's local position and reconstructed value. A nil node fills
// its entire subtree with the constant scale it was handed, matching the
// baseline invariant (an absent subtree is a uniform field).
func walkNode(node *Node, scale float32, idx geo.OctreeIndex, f func(leaf geo.Index3D, value float32) bool) bool {
	if idx.Height == 0 {
		return f(idx.Position, scale)
	}
	if node == nil {
		return walkBaseline(idx, scale, f)
	}
	children := wavelet.Backward(scale, node.Details)
	childIndices := geo.ChildIndices(idx)
	for i := 0; i < 8; i++ {
		if !walkNode(node.Children[i], children[i], childIndices[i], f) {
			return false
		}
	}
	return true
}

func walkBaseline(idx geo.OctreeIndex, value float32, f func(geo.Index3D, float32) bool) bool {
	if idx.Height == 0 {
		return f(idx.Position, value)
	}
	for _, c := range geo.ChildIndices(idx) {
		if !walkBaseline(c, value, f) {
			return false
		}
	}
	return true
}

// pruneNode collapses any descendant subtree that is exactly the baseline
// (no children, all-zero details) back to nil, and reports whether the
// subtree rooted at n (including n itself) is now baseline too, letting the
// caller collapse n itself.
func pruneNode(n *Node) bool {
	if n == nil {
		return true
	}
	allGone := true
	for i := uint8(0); i < 8; i++ {
		if n.Children[i] != nil {
			if pruneNode(n.Children[i]) {
				n.SetChild(i, nil)
			} else {
				allGone = false
			}
		}
	}
	return allGone && n.Details == (wavelet.Details{})
}
