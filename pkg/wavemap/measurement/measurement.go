// Package measurement provides the per-ray occupancy update rule and its
// worst-case approximation error bound, plus a default spherical projection
// model. Both are external collaborators the integrator depends on only
// through narrow interfaces (mirroring the teacher's practice of injecting a
// single-method `NodeProvider`-style interface to keep the core decoupled
// from a concrete data source), so a host can swap in its own sensor model
// without touching the integrator.
package measurement

import (
	"math"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/rangeimage"
)

// ProjectionModel maps a sensor-frame Cartesian point to the scalar range
// used both to index the range-image intersector and to parameterize the
// measurement model.
type ProjectionModel interface {
	CartesianToSensorZ(c geo.Point3D) float32
}

// Model is the per-ray occupancy update rule.
type Model interface {
	// ComputeUpdate returns the signed log-odds contribution at sensor-frame
	// point c.
	ComputeUpdate(c geo.Point3D) float32
	// WorstCaseApproximationError bounds how much ComputeUpdate can vary
	// within a bounding sphere of radius rho centered at sensor-frame
	// distance d, given the cell's update-type classification.
	WorstCaseApproximationError(updateType rangeimage.UpdateType, d, rho float32) float32
}

// SphericalProjectionModel is the common case for a spinning or
// solid-state spherical lidar: azimuth/elevation projection into a
// rectangular image domain. It implements both ProjectionModel and
// rangeimage.Projector.
type SphericalProjectionModel struct {
	Width, Height              int
	AzimuthMin, AzimuthMax     float32
	ElevationMin, ElevationMax float32
}

// Project implements rangeimage.Projector.
func (m SphericalProjectionModel) Project(c geo.Point3D) (u, v, r float32, ok bool) {
	r = norm(c)
	if r <= 0 {
		return 0, 0, 0, false
	}
	azimuth := float32(math.Atan2(float64(c[1]), float64(c[0])))
	elevation := float32(math.Asin(clampUnit(float64(c[2] / r))))

	if azimuth < m.AzimuthMin || azimuth > m.AzimuthMax ||
		elevation < m.ElevationMin || elevation > m.ElevationMax {
		return 0, 0, 0, false
	}

	u = (azimuth - m.AzimuthMin) / (m.AzimuthMax - m.AzimuthMin) * float32(m.Width)
	v = (elevation - m.ElevationMin) / (m.ElevationMax - m.ElevationMin) * float32(m.Height)
	return u, v, r, true
}

// CartesianToSensorZ implements ProjectionModel: the range is the Euclidean
// norm in sensor frame.
func (m SphericalProjectionModel) CartesianToSensorZ(c geo.Point3D) float32 {
	return norm(c)
}

func norm(c geo.Point3D) float32 {
	return float32(math.Sqrt(float64(c[0]*c[0] + c[1]*c[1] + c[2]*c[2])))
}

func clampUnit(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}

// ContinuousBeamModel is the default Model: a triangular occupied bump
// straddling the measured surface, and a constant free decrement for
// everything strictly nearer than the surface. It is bound to one frame's
// posed image plus projector, since computing an update for a ray requires
// knowing what that ray actually measured.
type ContinuousBeamModel struct {
	Frame *rangeimage.PosedImage
	Proj  rangeimage.Projector

	LogOddsOccupied    float32 // positive bump magnitude at the surface
	LogOddsFree        float32 // negative decrement (expected to be < 0)
	OccupancyBand      float32 // tau_occ: half-width of the occupied bump
	TruncationDistance float32 // rays beyond this from the surface are ignored
}

// ComputeUpdate implements Model.
func (m *ContinuousBeamModel) ComputeUpdate(c geo.Point3D) float32 {
	u, v, z, ok := m.Proj.Project(c)
	if !ok {
		return 0
	}
	measured, hadReturn, inBounds := m.Frame.Image.RangeAt(int(u), int(v))
	if !inBounds {
		return 0
	}

	delta := z - measured
	switch {
	case hadReturn && float32(math.Abs(float64(delta))) <= m.OccupancyBand:
		weight := 1 - float32(math.Abs(float64(delta)))/m.OccupancyBand
		return m.LogOddsOccupied * weight
	case delta < -m.OccupancyBand && delta > -m.TruncationDistance:
		return m.LogOddsFree
	default:
		return 0
	}
}

// WorstCaseApproximationError implements Model. The bump's steepest slope
// is LogOddsOccupied/OccupancyBand; a cell possibly straddling the surface
// can vary by at most that slope times its bounding radius, capped at the
// model's full dynamic range. Free/unknown cells sit on the model's flat
// region, so their worst case is a small fraction of that.
func (m *ContinuousBeamModel) WorstCaseApproximationError(updateType rangeimage.UpdateType, d, rho float32) float32 {
	span := m.LogOddsOccupied - m.LogOddsFree
	slope := m.LogOddsOccupied / m.OccupancyBand

	var bound float32
	if updateType == rangeimage.PossiblyOccupied {
		bound = slope * rho
	} else {
		bound = slope * rho * 0.1
	}
	if bound > span {
		bound = span
	}
	return bound
}
