package pose

import (
	"math"
	"testing"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
)

func almostEqual(a, b geo.Point3D) bool {
	const eps = 1e-5
	for i := 0; i < 3; i++ {
		if math.Abs(float64(a[i]-b[i])) > eps {
			return false
		}
	}
	return true
}

func TestIdentityInverseIsIdentity(t *testing.T) {
	p := Identity()
	inv := p.Inverse()
	pt := geo.Point3D{1, 2, 3}
	if got := inv.Transform(pt); !almostEqual(got, pt) {
		t.Errorf("Identity().Inverse().Transform(%v) = %v, want %v", pt, got, pt)
	}
}

func TestInverseUndoesTransform(t *testing.T) {
	p := Pose{
		Position: geo.Point3D{1, -2, 0.5},
		Rotation: [3][3]float32{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	}
	pt := geo.Point3D{3, 4, 5}
	world := p.Transform(pt)
	back := p.Inverse().Transform(world)
	if !almostEqual(back, pt) {
		t.Errorf("Inverse().Transform(Transform(%v)) = %v, want %v", pt, back, pt)
	}
}

func TestInverseOfInverseIsOriginal(t *testing.T) {
	p := Pose{
		Position: geo.Point3D{5, 5, 5},
		Rotation: [3][3]float32{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	}
	pt := geo.Point3D{1, 1, 1}
	got := p.Inverse().Inverse().Transform(pt)
	want := p.Transform(pt)
	if !almostEqual(got, want) {
		t.Errorf("double inverse transform = %v, want %v", got, want)
	}
}
