// Package sampler draws collision-free points by rejection sampling against
// an occupancy map and its ESDF, ported from collision_utils.cc.
package sampler

import (
	"math/rand"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
)

// kMaxAttempts matches the upstream RandomNumberGenerator-based rejection
// loop's bound: give up and report exhaustion rather than spin forever on
// an unsatisfiable map.
const kMaxAttempts = 1000

// freeThreshold mirrors collision_utils.cc's `occupancy_value < -1e-3f`:
// log-odds values need not be exactly 0 to count as "free enough".
const freeThreshold = -1e-3

// GetCollisionFreePosition draws a uniformly random position that is both
// occupancy-free and at least robotRadius from the nearest obstacle per
// esdf. If aabb is non-nil, candidates are drawn uniformly within it;
// otherwise a random occupied-ESDF block and cell are drawn, the upstream's
// fallback for "sample anywhere the ESDF has an opinion".
func GetCollisionFreePosition(occ volumetric.DataStructure, esdf *volumetric.HashedBlocks, robotRadius float32, aabb *geo.AABB) (geo.Point3D, bool) {
	for attempt := 0; attempt < kMaxAttempts; attempt++ {
		var global geo.Index3D
		var ok bool
		if aabb != nil {
			global, ok = randomIndexInAABB(esdf, *aabb)
		} else {
			global, ok = randomIndexInAnyBlock(esdf)
		}
		if !ok {
			continue
		}

		position := geo.IndexToCenterPoint(global, esdf.GetMinCellWidth())
		if aabb != nil && !aabb.ContainsPoint(position) {
			continue
		}

		if occ.GetCellValue(global) >= freeThreshold {
			continue
		}
		if esdf.GetCellValue(global) < robotRadius {
			continue
		}
		return position, true
	}

	cclog.Warnf("[SAMPLER]> SamplerExhaustion: could not find a collision-free position after %d attempts", kMaxAttempts)
	return geo.Point3D{}, false
}

// GetCollisionFree2DPosition projects the 3-D collision-free query down to
// the XY plane.
//
// hack: might not be collision free
func GetCollisionFree2DPosition(occ volumetric.DataStructure, esdf *volumetric.HashedBlocks, robotRadius float32) (geo.Point2D, bool) {
	for attempt := 0; attempt < kMaxAttempts; attempt++ {
		global, ok := randomIndexInAnyBlock(esdf)
		if !ok {
			continue
		}

		position := geo.IndexToCenterPoint(global, esdf.GetMinCellWidth())

		if occ.GetCellValue(global) >= freeThreshold {
			continue
		}
		if esdf.GetCellValue(global) < robotRadius {
			continue
		}
		return geo.Point2D{position[0], position[1]}, true
	}

	cclog.Warnf("[SAMPLER]> SamplerExhaustion: could not find a collision-free position after %d attempts", kMaxAttempts)
	return geo.Point2D{}, false
}

func randomIndexInAABB(esdf *volumetric.HashedBlocks, aabb geo.AABB) (geo.Index3D, bool) {
	p := geo.Point3D{
		randRange(aabb.Min[0], aabb.Max[0]),
		randRange(aabb.Min[1], aabb.Max[1]),
		randRange(aabb.Min[2], aabb.Max[2]),
	}
	return geo.PointToNearestIndex(p, esdf.GetMinCellWidth()), true
}

func randomIndexInAnyBlock(esdf *volumetric.HashedBlocks) (geo.Index3D, bool) {
	blocks := esdf.BlockIndices()
	if len(blocks) == 0 {
		return geo.Index3D{}, false
	}
	blockIdx := blocks[rand.Intn(len(blocks))]

	side := esdf.BlockSide()
	local := geo.LinearIndexToIndex3D(rand.Intn(side*side*side), side)
	return esdf.IndexFromBlockAndLocal(blockIdx, local), true
}

func randRange(lo, hi float32) float32 {
	return lo + rand.Float32()*(hi-lo)
}
