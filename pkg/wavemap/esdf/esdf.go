// Package esdf builds a bounded Euclidean signed distance field from an
// occupancy map: every occupied cell is a distance-zero seed, and distance
// propagates outward along 6-connected neighbors until it exceeds the
// configured cap.
package esdf

import (
	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
)

// Config carries the generator's two tunables.
type Config struct {
	// OccupancyThreshold is the log-odds value at or above which a cell
	// seeds the wavefront as an obstacle.
	OccupancyThreshold float32
	// MaxDistance bounds both the propagation radius and the output values;
	// cells farther than this from any obstacle are written as MaxDistance.
	MaxDistance float32
	// TreeHeight sizes the output HashedBlocks' blocks independently of the
	// input's own blocking (the DataStructure interface doesn't commit to
	// one, so the ESDF picks its own). Zero defaults to 4 (16 cells/axis),
	// wavemap's conventional block size.
	TreeHeight int
}

var neighborOffsets = [6]geo.Index3D{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Generate runs the 3-step algorithm over occ: seed every occupied cell at
// distance 0, propagate via a multi-source BFS wavefront bounded by
// cfg.MaxDistance, then fill every cell occ actually has an opinion about —
// every cell IterateBlocks visits — with either its propagated distance or
// the cap MaxDistance if the wavefront never reached it ("unknown-far").
// Cells outside occ's own domain are never written, the sense in which the
// ESDF stays block-sparse: an output block with no domain cell is absent.
// An output block that does receive a domain cell is allocated whole, so
// its non-domain cells read as 0.
func Generate(occ volumetric.DataStructure, cfg Config) *volumetric.HashedBlocks {
	treeHeight := cfg.TreeHeight
	if treeHeight <= 0 {
		treeHeight = 4
	}
	cellWidth := occ.GetMinCellWidth()
	side := occ.BlockSide()

	dist := map[geo.Index3D]float32{}
	queue := make([]geo.Index3D, 0, 64)
	domain := make([]geo.Index3D, 0, 64)

	occ.IterateBlocks(func(blockIdx, leafIdx geo.Index3D, value float32) bool {
		global := geo.Index3D{
			blockIdx[0]*int32(side) + leafIdx[0],
			blockIdx[1]*int32(side) + leafIdx[1],
			blockIdx[2]*int32(side) + leafIdx[2],
		}
		domain = append(domain, global)
		if value >= cfg.OccupancyThreshold {
			if _, seen := dist[global]; !seen {
				dist[global] = 0
				queue = append(queue, global)
			}
		}
		return true
	})

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		next := dist[cur] + cellWidth
		if next > cfg.MaxDistance {
			continue
		}
		for _, off := range neighborOffsets {
			n := geo.Index3D{cur[0] + off[0], cur[1] + off[1], cur[2] + off[2]}
			if _, seen := dist[n]; seen {
				// Uniform edge cost: the first discovery of any cell during
				// this multi-source BFS is already its shortest distance.
				continue
			}
			dist[n] = next
			queue = append(queue, n)
		}
	}

	out := volumetric.NewHashedBlocks(treeHeight, cellWidth)
	for _, idx := range domain {
		d, reached := dist[idx]
		if !reached {
			d = cfg.MaxDistance
		}
		out.SetCellValue(idx, clamp(d, 0, cfg.MaxDistance))
	}
	return out
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
