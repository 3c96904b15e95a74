// Package geo provides the spatial primitives the rest of wavemap is built
// on: octree indices, axis-aligned boxes, and the pure conversions between
// world coordinates and index space. Nothing in this package carries state;
// every function is safe for concurrent use.
package geo

// Point3D is a point or vector in world coordinates, 32-bit per spec.
type Point3D [3]float32

// Point2D is the 2-D projection used by the advisory sampler variant.
type Point2D [2]float32

// Index3D is an integer octree-cell position at some implied height.
type Index3D [3]int32

// OctreeIndex denotes an octree cell: height 0 is a leaf, the cell AABB is
// [p * 2^h * w, (p+1) * 2^h * w).
type OctreeIndex struct {
	Height   int
	Position Index3D
}

// AABB is an axis-aligned bounding box in world coordinates.
type AABB struct {
	Min, Max Point3D
}

// Width returns the box's extent along axis (0=x, 1=y, 2=z).
func (b AABB) Width(axis int) float32 {
	return b.Max[axis] - b.Min[axis]
}

// Center returns the box's midpoint.
func (b AABB) Center() Point3D {
	return Point3D{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// ContainsPoint reports whether p lies within the half-open box.
func (b AABB) ContainsPoint(p Point3D) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || b.Max[i] <= p[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether two boxes overlap.
func (b AABB) Intersects(o AABB) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Corners returns the box's 8 corners in the fixed 3-bit child order: bit 0
// selects x (0=min,1=max), bit 1 selects y, bit 2 selects z.
func (b AABB) Corners() [8]Point3D {
	var corners [8]Point3D
	for i := 0; i < 8; i++ {
		var p Point3D
		for axis := 0; axis < 3; axis++ {
			if i&(1<<uint(axis)) != 0 {
				p[axis] = b.Max[axis]
			} else {
				p[axis] = b.Min[axis]
			}
		}
		corners[i] = p
	}
	return corners
}

// CellWidth is the world-space side length of a cell at the given height.
func CellWidth(height int, minCellWidth float32) float32 {
	w := minCellWidth
	for i := 0; i < height; i++ {
		w *= 2
	}
	return w
}

// NodeIndexToAABB returns the world-space box covered by idx.
func NodeIndexToAABB(idx OctreeIndex, minCellWidth float32) AABB {
	w := CellWidth(idx.Height, minCellWidth)
	var min, max Point3D
	for i := 0; i < 3; i++ {
		min[i] = float32(idx.Position[i]) * w
		max[i] = min[i] + w
	}
	return AABB{Min: min, Max: max}
}

// NodeIndexToCenterPoint returns the center of the box covered by idx.
func NodeIndexToCenterPoint(idx OctreeIndex, minCellWidth float32) Point3D {
	return NodeIndexToAABB(idx, minCellWidth).Center()
}

// PointToNearestIndex converts a world point into the leaf index (height 0)
// whose cell contains it, given the leaf cell width.
func PointToNearestIndex(p Point3D, minCellWidth float32) Index3D {
	var idx Index3D
	for i := 0; i < 3; i++ {
		idx[i] = int32(floorDiv(p[i], minCellWidth))
	}
	return idx
}

// IndexToCenterPoint returns the center of the leaf cell at idx.
func IndexToCenterPoint(idx Index3D, minCellWidth float32) Point3D {
	var p Point3D
	for i := 0; i < 3; i++ {
		p[i] = (float32(idx[i]) + 0.5) * minCellWidth
	}
	return p
}

func floorDiv(v, w float32) int64 {
	q := v / w
	i := int64(q)
	if q < 0 && float32(i) != q {
		i--
	}
	return i
}

// ChildIndices returns the 8 children of idx in the fixed 3-bit
// lexicographic order (bit 0 = x, bit 1 = y, bit 2 = z).
func ChildIndices(idx OctreeIndex) [8]OctreeIndex {
	var children [8]OctreeIndex
	childHeight := idx.Height - 1
	for i := 0; i < 8; i++ {
		var pos Index3D
		for axis := 0; axis < 3; axis++ {
			bit := int32(0)
			if i&(1<<uint(axis)) != 0 {
				bit = 1
			}
			pos[axis] = idx.Position[axis]*2 + bit
		}
		children[i] = OctreeIndex{Height: childHeight, Position: pos}
	}
	return children
}

// ChildIndex returns the relative-child'th child of idx (relativeChild in
// [0,8)).
func ChildIndex(idx OctreeIndex, relativeChild uint8) OctreeIndex {
	var pos Index3D
	for axis := 0; axis < 3; axis++ {
		bit := int32(0)
		if relativeChild&(1<<uint(axis)) != 0 {
			bit = 1
		}
		pos[axis] = idx.Position[axis]*2 + bit
	}
	return OctreeIndex{Height: idx.Height - 1, Position: pos}
}

// ParentIndex returns the parent of idx and the relative-child index idx
// occupies within it.
func ParentIndex(idx OctreeIndex) (parent OctreeIndex, relativeChild uint8) {
	var pos Index3D
	for axis := 0; axis < 3; axis++ {
		p := idx.Position[axis]
		floor := p >> 1
		if p%2 != 0 && p < 0 {
			floor = (p - 1) / 2
		}
		pos[axis] = floor
		if p-floor*2 != 0 {
			relativeChild |= 1 << uint(axis)
		}
	}
	return OctreeIndex{Height: idx.Height + 1, Position: pos}, relativeChild
}

// LinearIndexToIndex3D converts a linear offset into a dense side*side*side
// cube back into a 3-D cell index (row-major: x fastest, then y, then z).
func LinearIndexToIndex3D(linear, side int) Index3D {
	x := linear % side
	y := (linear / side) % side
	z := linear / (side * side)
	return Index3D{int32(x), int32(y), int32(z)}
}

// Index3DToLinearIndex is the inverse of LinearIndexToIndex3D.
func Index3DToLinearIndex(idx Index3D, side int) int {
	return int(idx[0]) + int(idx[1])*side + int(idx[2])*side*side
}
