// Package rangeimage classifies octree cells against a single posed sensor
// frame: fully outside every measurement, plausibly free, or possibly
// occupied. The classification is the integrator's pruning oracle, so it is
// built once per frame and queried O(nodes) times.
package rangeimage

import (
	"math"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/pose"
)

// Image is a single sensor scan: a row-major grid of ranges, NaN where the
// sensor returned nothing. Width is the fast-varying (azimuth) axis.
type Image struct {
	Width, Height int
	Ranges        []float32

	// MaxRange substitutes for NaN (no-return) pixels when the min/max
	// summary is built: a missing return is treated the same as a
	// maximum-range return, the common lidar convention that "no
	// obstacle was seen up to here".
	MaxRange float32

	// Field-of-view bounds in radians, the projection model's domain.
	AzimuthMin, AzimuthMax     float32
	ElevationMin, ElevationMax float32
}

func (img *Image) at(u, v int) float32 {
	r := img.Ranges[v*img.Width+u]
	if math.IsNaN(float64(r)) {
		return img.MaxRange
	}
	return r
}

// RangeAt returns the raw measured range at pixel (u,v). hadReturn is false
// when the sensor produced no return there (the raw value was NaN); ok is
// false when (u,v) falls outside the image.
func (img *Image) RangeAt(u, v int) (r float32, hadReturn bool, ok bool) {
	if u < 0 || u >= img.Width || v < 0 || v >= img.Height {
		return 0, false, false
	}
	raw := img.Ranges[v*img.Width+u]
	if math.IsNaN(float64(raw)) {
		return img.MaxRange, false, true
	}
	return raw, true, true
}

// Projector maps a sensor-frame Cartesian point to image-space pixel
// coordinates and range. ok is false when the point falls outside the
// sensor's field of view. Implemented structurally by
// measurement.SphericalProjectionModel; rangeimage declares only the narrow
// slice of behavior it needs so it never has to import measurement.
type Projector interface {
	Project(c geo.Point3D) (u, v, r float32, ok bool)
}

// PosedImage is an Image placed in the world: origin plus a rotation from
// sensor frame to world frame. RotationInverse (the transpose, since
// rotations are orthonormal) is computed once at construction and reused for
// every corner transform in a frame, mirroring the upstream convention of
// caching the inverse rotation per posed range image.
type PosedImage struct {
	*Image
	Origin          geo.Point3D
	Rotation        [3][3]float32
	RotationInverse [3][3]float32
}

// NewPosedImage builds a PosedImage, precomputing the rotation inverse.
func NewPosedImage(img *Image, origin geo.Point3D, rotation [3][3]float32) *PosedImage {
	return &PosedImage{
		Image:           img,
		Origin:          origin,
		Rotation:        rotation,
		RotationInverse: transpose(rotation),
	}
}

// NewPosedImageFromPose builds a PosedImage from the pose package's rigid
// transform type — the shape a host actually receives from its pose source
// (spec.md §6's "Pose (consumed)" collaborator).
func NewPosedImageFromPose(img *Image, p pose.Pose) *PosedImage {
	return NewPosedImage(img, p.Position, p.Rotation)
}

// Pose returns the frame's placement as a pose.Pose value.
func (pi *PosedImage) Pose() pose.Pose {
	return pose.Pose{Position: pi.Origin, Rotation: pi.Rotation}
}

// PoseInverse returns the world-to-sensor rigid transform, equivalent to
// ToSensorFrame but expressed as a reusable pose.Pose (the
// "getPoseInverse()" accessor from spec.md §6).
func (pi *PosedImage) PoseInverse() pose.Pose {
	return pose.Pose{Position: mulVec(pi.RotationInverse, negate(pi.Origin)), Rotation: pi.RotationInverse}
}

func negate(p geo.Point3D) geo.Point3D {
	return geo.Point3D{-p[0], -p[1], -p[2]}
}

// ToSensorFrame applies the rigid-body inverse R^T(p - O).
func (pi *PosedImage) ToSensorFrame(p geo.Point3D) geo.Point3D {
	d := geo.Point3D{p[0] - pi.Origin[0], p[1] - pi.Origin[1], p[2] - pi.Origin[2]}
	return mulVec(pi.RotationInverse, d)
}

func transpose(m [3][3]float32) [3][3]float32 {
	var t [3][3]float32
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

func mulVec(m [3][3]float32, v geo.Point3D) geo.Point3D {
	return geo.Point3D{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// UpdateType is a cell's classification against the current frame.
type UpdateType int

const (
	FullyUnobserved UpdateType = iota
	FreeOrUnknown
	PossiblyOccupied
)

func (u UpdateType) String() string {
	switch u {
	case FullyUnobserved:
		return "FullyUnobserved"
	case FreeOrUnknown:
		return "FreeOrUnknown"
	case PossiblyOccupied:
		return "PossiblyOccupied"
	default:
		return "UpdateType(?)"
	}
}

type minmax struct{ min, max float32 }

// Pyramid is a hierarchical min/max summary over a range image: level 0 is
// the raw image (padded up to a power of two per axis), and each further
// level halves the resolution, storing the min/max of the 2x2 block below
// it. A query picks the coarsest level whose cells are no larger than the
// rectangle's shorter side and combines the cells at that level that
// overlap it: at most 3 per axis for a square rectangle, and in proportion
// to the aspect ratio for an elongated one, instead of every pixel.
type Pyramid struct {
	width, height int // level-0 (padded) dimensions
	levels        [][]minmax
}

// BuildPyramid constructs the summary in O(N) over img's pixels.
func BuildPyramid(img *Image) *Pyramid {
	w, h := nextPow2(img.Width), nextPow2(img.Height)
	level0 := make([]minmax, w*h)
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			var r float32
			if u < img.Width && v < img.Height {
				r = img.at(u, v)
			} else {
				// Padding cells never constrain a real query: give them the
				// empty interval (min=+Inf, max=-Inf), which leaves any
				// min/max combination unchanged.
				level0[v*w+u] = minmax{min: float32(math.Inf(1)), max: float32(math.Inf(-1))}
				continue
			}
			level0[v*w+u] = minmax{min: r, max: r}
		}
	}

	p := &Pyramid{width: w, height: h, levels: [][]minmax{level0}}
	lw, lh := w, h
	prev := level0
	for lw > 1 || lh > 1 {
		nw, nh := max(lw/2, 1), max(lh/2, 1)
		next := make([]minmax, nw*nh)
		for v := 0; v < nh; v++ {
			for u := 0; u < nw; u++ {
				next[v*nw+u] = combine4(prev, lw, lh, u, v)
			}
		}
		p.levels = append(p.levels, next)
		prev, lw, lh = next, nw, nh
	}
	return p
}

func combine4(level []minmax, lw, lh, u, v int) minmax {
	acc := minmax{min: float32(math.Inf(1)), max: float32(math.Inf(-1))}
	for dv := 0; dv < 2; dv++ {
		for du := 0; du < 2; du++ {
			su, sv := u*2+du, v*2+dv
			if su >= lw || sv >= lh {
				continue
			}
			c := level[sv*lw+su]
			acc.min = min(acc.min, c.min)
			acc.max = max(acc.max, c.max)
		}
	}
	return acc
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	if p == 0 {
		p = 1
	}
	return p
}

// QueryMinMax returns the min/max observed range over the half-open pixel
// rectangle [u0,u1) x [v0,v1), clamped to the image bounds.
func (p *Pyramid) QueryMinMax(u0, v0, u1, v1 int) (float32, float32) {
	if u0 < 0 {
		u0 = 0
	}
	if v0 < 0 {
		v0 = 0
	}
	if u1 > p.width {
		u1 = p.width
	}
	if v1 > p.height {
		v1 = p.height
	}
	if u1 <= u0 || v1 <= v0 {
		return float32(math.Inf(1)), float32(math.Inf(-1))
	}

	rectW, rectH := u1-u0, v1-v0
	level := 0
	for (1<<uint(level+1)) <= rectW && (1<<uint(level+1)) <= rectH {
		level++
	}
	if level >= len(p.levels) {
		level = len(p.levels) - 1
	}

	scale := 1 << uint(level)
	lw := max(p.width>>uint(level), 1)
	lh := max(p.height>>uint(level), 1)
	lu0, lv0 := u0/scale, v0/scale
	lu1 := (u1 + scale - 1) / scale
	lv1 := (v1 + scale - 1) / scale

	acc := minmax{min: float32(math.Inf(1)), max: float32(math.Inf(-1))}
	lvl := p.levels[level]
	for v := lv0; v < lv1 && v < lh; v++ {
		for u := lu0; u < lu1 && u < lw; u++ {
			c := lvl[v*lw+u]
			acc.min = min(acc.min, c.min)
			acc.max = max(acc.max, c.max)
		}
	}
	return acc.min, acc.max
}

// Intersector classifies AABBs against one posed frame. Built once per
// frame via NewIntersector and queried many times.
type Intersector struct {
	frame              *PosedImage
	proj               Projector
	pyramid            *Pyramid
	occlusionThreshold float32
}

// NewIntersector builds the frame's pyramid and returns a ready classifier.
func NewIntersector(img *PosedImage, proj Projector, occlusionThreshold float32) *Intersector {
	return &Intersector{
		frame:              img,
		proj:               proj,
		pyramid:            BuildPyramid(img.Image),
		occlusionThreshold: occlusionThreshold,
	}
}

// DetermineUpdateType classifies an AABB against the frame.
func (in *Intersector) DetermineUpdateType(aabb geo.AABB) UpdateType {
	corners := aabb.Corners()

	uMin, vMin := math.MaxInt32, math.MaxInt32
	uMax, vMax := math.MinInt32, math.MinInt32
	dMin, dMax := float32(math.Inf(1)), float32(math.Inf(-1))
	anyInFOV := false

	for _, corner := range corners {
		sensorPt := in.frame.ToSensorFrame(corner)
		u, v, r, ok := in.proj.Project(sensorPt)
		if !ok || math.IsNaN(float64(u)) || math.IsNaN(float64(v)) || math.IsNaN(float64(r)) {
			continue
		}
		anyInFOV = true

		iu, iv := int(math.Floor(float64(u))), int(math.Floor(float64(v)))
		uMin, uMax = min(uMin, iu), max(uMax, iu)
		vMin, vMax = min(vMin, iv), max(vMax, iv)
		dMin = min(dMin, r)
		dMax = max(dMax, r)
	}

	if !anyInFOV {
		return FullyUnobserved
	}

	rMin, rMax := in.pyramid.QueryMinMax(uMin, vMin, uMax+1, vMax+1)
	tau := in.occlusionThreshold

	switch {
	case dMin > rMax+tau:
		return FullyUnobserved
	case dMax < rMin-tau:
		return FreeOrUnknown
	default:
		return PossiblyOccupied
	}
}
