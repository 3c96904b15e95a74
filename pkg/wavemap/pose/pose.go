// Package pose models the rigid-body sensor pose external interface
// spec'd in spec.md §6: a posed range image supplies getOrigin,
// getRotationMatrixInverse, and getPoseInverse. Pose itself is an external
// collaborator's data type (the robot pose source is out of scope per
// spec.md §1) — this package exists so the boundary has a concrete, typed
// shape rather than a bag of loose floats passed around positionally.
package pose

import "github.com/nospelt/wavemap/pkg/wavemap/geo"

// Pose is a rigid-body transform from sensor frame to world frame:
// world = Rotation*sensorPoint + Position. Rotation is assumed orthonormal
// (a proper rotation matrix), so its inverse is always its transpose.
type Pose struct {
	Position geo.Point3D
	Rotation [3][3]float32
}

// Identity returns the pose at the world origin with no rotation.
func Identity() Pose {
	return Pose{Rotation: [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Inverse returns the rigid-body inverse pose (world frame to sensor
// frame): Rotation^T, -Rotation^T*Position.
func (p Pose) Inverse() Pose {
	rt := transpose(p.Rotation)
	neg := geo.Point3D{-p.Position[0], -p.Position[1], -p.Position[2]}
	return Pose{Position: mulVec(rt, neg), Rotation: rt}
}

// Transform maps a point expressed in this pose's own frame into the frame
// it is relative to: Rotation*p + Position.
func (p Pose) Transform(pt geo.Point3D) geo.Point3D {
	r := mulVec(p.Rotation, pt)
	return geo.Point3D{r[0] + p.Position[0], r[1] + p.Position[1], r[2] + p.Position[2]}
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
