package rangeimage

import (
	"math"
	"testing"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
)

// identityProjector treats sensor-frame x,y as pixel u,v directly and z as
// range, rejecting anything behind the sensor. It exists only to drive the
// intersector's geometry without pulling in the measurement package.
type identityProjector struct{ w, h int }

func (p identityProjector) Project(c geo.Point3D) (u, v, r float32, ok bool) {
	if c[2] <= 0 {
		return 0, 0, 0, false
	}
	u, v = c[0]+float32(p.w)/2, c[1]+float32(p.h)/2
	if u < 0 || u >= float32(p.w) || v < 0 || v >= float32(p.h) {
		return 0, 0, 0, false
	}
	return u, v, c[2], true
}

func flatImage(w, h int, r, maxRange float32) *Image {
	ranges := make([]float32, w*h)
	for i := range ranges {
		ranges[i] = r
	}
	return &Image{Width: w, Height: h, Ranges: ranges, MaxRange: maxRange}
}

func identity() [3][3]float32 {
	return [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func TestPyramidQueryMatchesFlatImage(t *testing.T) {
	img := flatImage(16, 16, 5, 10)
	p := BuildPyramid(img)
	lo, hi := p.QueryMinMax(2, 2, 10, 10)
	if lo != 5 || hi != 5 {
		t.Fatalf("QueryMinMax = (%v,%v), want (5,5) for a flat image", lo, hi)
	}
}

func TestPyramidNaNBecomesMaxRange(t *testing.T) {
	img := flatImage(8, 8, float32(math.NaN()), 20)
	p := BuildPyramid(img)
	lo, hi := p.QueryMinMax(0, 0, 8, 8)
	if lo != 20 || hi != 20 {
		t.Fatalf("QueryMinMax = (%v,%v), want (20,20) with NaN substituted by MaxRange", lo, hi)
	}
}

func TestDetermineUpdateTypeOutsideFOVIsFullyUnobserved(t *testing.T) {
	img := flatImage(4, 4, 3, 10)
	posed := NewPosedImage(img, geo.Point3D{0, 0, 0}, identity())
	in := NewIntersector(posed, identityProjector{4, 4}, 0.1)

	aabb := geo.AABB{Min: Point(100, 100, 100), Max: Point(101, 101, 101)}
	if got := in.DetermineUpdateType(aabb); got != FullyUnobserved {
		t.Errorf("out-of-FOV AABB classified %v, want FullyUnobserved", got)
	}
}

func TestDetermineUpdateTypeBeyondMeasurementsIsFullyUnobserved(t *testing.T) {
	img := flatImage(4, 4, 3, 10)
	posed := NewPosedImage(img, geo.Point3D{0, 0, 0}, identity())
	in := NewIntersector(posed, identityProjector{4, 4}, 0.01)

	aabb := geo.AABB{Min: Point(-0.1, -0.1, 9), Max: Point(0.1, 0.1, 9.2)}
	if got := in.DetermineUpdateType(aabb); got != FullyUnobserved {
		t.Errorf("AABB far beyond measured range classified %v, want FullyUnobserved", got)
	}
}

func TestDetermineUpdateTypeInFrontOfMeasurementsIsFree(t *testing.T) {
	img := flatImage(4, 4, 5, 10)
	posed := NewPosedImage(img, geo.Point3D{0, 0, 0}, identity())
	in := NewIntersector(posed, identityProjector{4, 4}, 0.01)

	aabb := geo.AABB{Min: Point(-0.1, -0.1, 1), Max: Point(0.1, 0.1, 1.2)}
	if got := in.DetermineUpdateType(aabb); got != FreeOrUnknown {
		t.Errorf("AABB in front of every measurement classified %v, want FreeOrUnknown", got)
	}
}

func TestDetermineUpdateTypeNearMeasurementsIsPossiblyOccupied(t *testing.T) {
	img := flatImage(4, 4, 5, 10)
	posed := NewPosedImage(img, geo.Point3D{0, 0, 0}, identity())
	in := NewIntersector(posed, identityProjector{4, 4}, 0.5)

	aabb := geo.AABB{Min: Point(-0.1, -0.1, 4.8), Max: Point(0.1, 0.1, 5.2)}
	if got := in.DetermineUpdateType(aabb); got != PossiblyOccupied {
		t.Errorf("AABB straddling the measured surface classified %v, want PossiblyOccupied", got)
	}
}

// Point is a tiny test helper: the exported API works in Point3D value
// literals but [3]float32{...} composite literals read noisily inline.
func Point(x, y, z float32) geo.Point3D { return geo.Point3D{x, y, z} }
