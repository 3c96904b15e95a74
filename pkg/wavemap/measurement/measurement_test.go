package measurement

import (
	"math"
	"testing"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/rangeimage"
)

func flatFrame(w, h int, r float32) *rangeimage.PosedImage {
	ranges := make([]float32, w*h)
	for i := range ranges {
		ranges[i] = r
	}
	img := &rangeimage.Image{Width: w, Height: h, Ranges: ranges, MaxRange: 2 * r}
	return rangeimage.NewPosedImage(img, geo.Point3D{0, 0, 0}, [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
}

func fullSphere(w, h int) SphericalProjectionModel {
	return SphericalProjectionModel{
		Width: w, Height: h,
		AzimuthMin: -math.Pi, AzimuthMax: math.Pi,
		ElevationMin: -math.Pi / 2, ElevationMax: math.Pi / 2,
	}
}

func TestSphericalProjectionRoundTripsRange(t *testing.T) {
	proj := fullSphere(64, 32)
	c := geo.Point3D{3, 4, 0}
	_, _, r, ok := proj.Project(c)
	if !ok {
		t.Fatal("expected point within full-sphere FOV to project")
	}
	if math.Abs(float64(r-5)) > 1e-4 {
		t.Errorf("projected range = %v, want 5", r)
	}
	if z := proj.CartesianToSensorZ(c); math.Abs(float64(z-5)) > 1e-4 {
		t.Errorf("CartesianToSensorZ = %v, want 5", z)
	}
}

func TestContinuousBeamModelOccupiedBumpAtSurface(t *testing.T) {
	frame := flatFrame(8, 8, 5)
	proj := fullSphere(8, 8)
	m := &ContinuousBeamModel{
		Frame: frame, Proj: proj,
		LogOddsOccupied: 2, LogOddsFree: -1, OccupancyBand: 0.5, TruncationDistance: 4,
	}

	atSurface := geo.Point3D{5, 0, 0}
	delta := m.ComputeUpdate(atSurface)
	if delta <= 0 {
		t.Errorf("update at the measured surface = %v, want a positive occupied bump", delta)
	}
}

func TestContinuousBeamModelFreeBeforeSurface(t *testing.T) {
	frame := flatFrame(8, 8, 5)
	proj := fullSphere(8, 8)
	m := &ContinuousBeamModel{
		Frame: frame, Proj: proj,
		LogOddsOccupied: 2, LogOddsFree: -1, OccupancyBand: 0.2, TruncationDistance: 4,
	}

	beforeSurface := geo.Point3D{2, 0, 0}
	if got := m.ComputeUpdate(beforeSurface); got != -1 {
		t.Errorf("update strictly in front of the surface = %v, want LogOddsFree (-1)", got)
	}
}

func TestWorstCaseApproximationErrorMonotonicAndBounded(t *testing.T) {
	m := &ContinuousBeamModel{LogOddsOccupied: 2, LogOddsFree: -1, OccupancyBand: 0.5}
	span := m.LogOddsOccupied - m.LogOddsFree

	small := m.WorstCaseApproximationError(rangeimage.PossiblyOccupied, 5, 0.01)
	large := m.WorstCaseApproximationError(rangeimage.PossiblyOccupied, 5, 10)
	if large < small {
		t.Errorf("approximation error should be non-decreasing in rho: rho=0.01 -> %v, rho=10 -> %v", small, large)
	}
	if large > span {
		t.Errorf("approximation error %v exceeds the model's dynamic range %v", large, span)
	}

	free := m.WorstCaseApproximationError(rangeimage.FreeOrUnknown, 5, 10)
	if free > large {
		t.Errorf("FreeOrUnknown error %v should not exceed PossiblyOccupied error %v for the same rho", free, large)
	}
}
