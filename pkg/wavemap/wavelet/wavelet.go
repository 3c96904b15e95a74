// Package wavelet implements the Haar-like lifting transform used to move
// an octree node's 8 child scale coefficients into one parent scale
// coefficient plus 7 detail coefficients, and back. It has no state and no
// dependency on the rest of the module — a node's wavelet representation is
// pure arithmetic over an 8-tuple of float32 values.
//
// The transform is separable: it averages/differences pairs of children
// along x, then the resulting 4 values along y, then the resulting 2 along
// z. The root scale this produces is exactly the arithmetic mean of the 8
// input values (each stage preserves the mean of equal-sized groups), and
// Forward/Backward are inverses of one another up to float32 rounding: the
// round-trip error of each coefficient is a few ulps of the largest-magnitude
// coefficient in the tuple. A coefficient much smaller in magnitude than that
// one is not reproduced to within one ulp of its own value.
package wavelet

// ChildScales holds the 8 child scale coefficients in the fixed 3-bit
// child order (bit 0 = x, bit 1 = y, bit 2 = z).
type ChildScales = [8]float32

// Details holds a node's 7 detail coefficients: [0:4) from the x-axis
// stage, [4:6) from the y-axis stage, [6] from the z-axis stage.
type Details = [7]float32

// avgDiff is the elementary reversible lifting step: a pair of values is
// replaced by their average and half their difference.
func avgDiff(lo, hi float32) (avg, diff float32) {
	return (lo + hi) / 2, (lo - hi) / 2
}

// Forward reduces 8 child scale coefficients to a parent scale and 7
// detail coefficients.
func Forward(s ChildScales) (scale float32, d Details) {
	var a [4]float32
	a[0], d[0] = avgDiff(s[0], s[1])
	a[1], d[1] = avgDiff(s[2], s[3])
	a[2], d[2] = avgDiff(s[4], s[5])
	a[3], d[3] = avgDiff(s[6], s[7])

	var b [2]float32
	b[0], d[4] = avgDiff(a[0], a[1])
	b[1], d[5] = avgDiff(a[2], a[3])

	scale, d[6] = avgDiff(b[0], b[1])
	return scale, d
}

// Backward reconstructs the 8 child scale coefficients from a parent scale
// and its 7 detail coefficients. It is the exact inverse of Forward.
func Backward(scale float32, d Details) (s ChildScales) {
	b0, b1 := scale+d[6], scale-d[6]

	a0, a1 := b0+d[4], b0-d[4]
	a2, a3 := b1+d[5], b1-d[5]

	s[0], s[1] = a0+d[0], a0-d[0]
	s[2], s[3] = a1+d[1], a1-d[1]
	s[4], s[5] = a2+d[2], a2-d[2]
	s[6], s[7] = a3+d[3], a3-d[3]
	return s
}
