// Package integrator fuses one posed range image into a hashed wavelet
// octree block store. It discovers which blocks a frame can possibly touch
// (recursiveTester), then refines each touched block top-down, stopping as
// soon as a node's worst-case approximation error is small enough that
// finer detail wouldn't change the result (recursiveSamplerCompressor).
package integrator

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/measurement"
	"github.com/nospelt/wavemap/pkg/wavemap/rangeimage"
	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
	"github.com/nospelt/wavemap/pkg/wavemap/wavelet"
)

// DefaultMaxWorkers caps the auto-selected worker count the same way
// pkg/metricstore/config.go caps MetricStoreConfig.NumWorkers.
const DefaultMaxWorkers = 10

// kUnitCubeHalfDiagonal is the distance from a unit cube's center to its
// corner (sqrt(3)/2); a cell of world width w is bounded by a sphere of
// radius kUnitCubeHalfDiagonal*w.
const kUnitCubeHalfDiagonal = 0.8660254

// Config carries every tunable of the coarse-to-fine integration algorithm.
type Config struct {
	// TerminationHeight is the finest height ever sampled; refinement never
	// recurses below it even if the approximation error stays too large.
	TerminationHeight int
	// TerminationUpdateError is the approximation-error bound below which a
	// node is accepted without refining into its children.
	TerminationUpdateError float32

	MinLogOdds     float32
	MaxLogOdds     float32
	NoiseThreshold float32

	TreeHeight   int // block height H, must match the Map's TreeHeight
	MinCellWidth float32

	// OcclusionThreshold is the slack (in range units) the frame intersector
	// allows before a cell is classified as occluded rather than possibly
	// occupied.
	OcclusionThreshold float32

	// NumWorkers is the per-frame worker pool size. Zero selects the
	// teacher's default: min(runtime.NumCPU()/2+1, DefaultMaxWorkers).
	NumWorkers int
}

func (c Config) numWorkers() int {
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	return min(runtime.NumCPU()/2+1, DefaultMaxWorkers)
}

// HashedWaveletIntegrator fuses range images into a block store, using a
// pluggable measurement model and projection to stay decoupled from any one
// sensor's geometry.
type HashedWaveletIntegrator struct {
	Map       *volumetric.Map
	Model     measurement.Model
	Proj      measurement.ProjectionModel
	Projector rangeimage.Projector
	Config    Config
}

// NewHashedWaveletIntegrator wires a block store, measurement model, and
// projection into a ready integrator. proj doubles as both the
// measurement.ProjectionModel (range lookups) and rangeimage.Projector
// (frame intersection), which is how measurement.SphericalProjectionModel
// is meant to be used.
func NewHashedWaveletIntegrator(m *volumetric.Map, model measurement.Model, proj interface {
	measurement.ProjectionModel
	rangeimage.Projector
}, cfg Config) *HashedWaveletIntegrator {
	return &HashedWaveletIntegrator{Map: m, Model: model, Proj: proj, Projector: proj, Config: cfg}
}

// Integrate fuses frame into the block store: it enumerates candidate
// blocks via recursiveTester, then refines each one in parallel across a
// fixed worker pool, exactly mirroring ToCheckpoint's
// channel-plus-WaitGroup dispatch since blocks are disjoint map keys and so
// are always safe to touch concurrently.
func (in *HashedWaveletIntegrator) Integrate(frame *rangeimage.PosedImage) error {
	start := time.Now()
	intersector := rangeimage.NewIntersector(frame, in.Projector, in.Config.OcclusionThreshold)

	root := syntheticRoot(frame, in.Config.TreeHeight, in.Config.MinCellWidth)
	var jobs []geo.OctreeIndex
	recursiveTester(root, in.Config.TreeHeight, in.Map, intersector, in.Config.MinLogOdds, in.Config.NoiseThreshold, in.Config.MinCellWidth, &jobs)

	if len(jobs) == 0 {
		cclog.Debugf("[INTEGRATOR]> frame touched no blocks (%s)", time.Since(start))
		return nil
	}

	numWorkers := in.Config.numWorkers()
	var n int32

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	work := make(chan geo.OctreeIndex, numWorkers*2)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for nodeIndex := range work {
				in.integrateBlock(nodeIndex, frame, intersector)
				atomic.AddInt32(&n, 1)
			}
		}()
	}

	for _, j := range jobs {
		work <- j
	}
	close(work)
	wg.Wait()

	cclog.Debugf("[INTEGRATOR]> %d blocks touched, %d jobs dispatched (%s)", n, len(jobs), time.Since(start))
	return nil
}

func (in *HashedWaveletIntegrator) integrateBlock(blockIndex geo.OctreeIndex, frame *rangeimage.PosedImage, intersector *rangeimage.Intersector) {
	block := in.Map.GetOrAllocateBlock(blockIndex.Position)
	nodeValue := block.RootScale

	env := &refineEnv{
		cfg:         in.Config,
		model:       in.Model,
		proj:        in.Proj,
		frame:       frame,
		intersector: intersector,
	}
	recursiveSamplerCompressor(&block.RootNode, blockIndex, &nodeValue, env)
	block.RootScale = nodeValue
}

// recursiveTester descends from nodeIndex, classifying each node's AABB
// against the frame and emitting a job for every tree-height block that
// might need an update. It never refines past block granularity itself —
// recursiveSamplerCompressor does that, and does it per block in parallel.
func recursiveTester(nodeIndex geo.OctreeIndex, treeHeight int, m *volumetric.Map, intersector *rangeimage.Intersector, minLogOdds, noiseThreshold, minCellWidth float32, jobs *[]geo.OctreeIndex) {
	aabb := geo.NodeIndexToAABB(nodeIndex, minCellWidth)
	updateType := intersector.DetermineUpdateType(aabb)
	if updateType == rangeimage.FullyUnobserved {
		return
	}

	if nodeIndex.Height == treeHeight {
		if updateType == rangeimage.PossiblyOccupied {
			*jobs = append(*jobs, nodeIndex)
			return
		}
		if block, ok := m.Block(nodeIndex.Position); ok {
			if minLogOdds+noiseThreshold/10 <= block.RootScale {
				*jobs = append(*jobs, nodeIndex)
			}
		}
		return
	}

	for _, child := range geo.ChildIndices(nodeIndex) {
		recursiveTester(child, treeHeight, m, intersector, minLogOdds, noiseThreshold, minCellWidth, jobs)
	}
}

type refineEnv struct {
	cfg         Config
	model       measurement.Model
	proj        measurement.ProjectionModel
	frame       *rangeimage.PosedImage
	intersector *rangeimage.Intersector
}

// recursiveSamplerCompressor refines the cell at nodeIndex, whose current
// scale coefficient is *nodeValue and whose wavelet-parent node (the node
// whose Backward transform reconstructs nodeIndex's own 8 children) is
// *parentPtr. It descends only as far as the measurement model's
// approximation-error bound requires. A sample applied at the termination
// height or at a node with no children is clamped into
// [MinLogOdds-NoiseThreshold, MaxLogOdds+NoiseThreshold]; a sample accepted
// at a node that still has children is added to its scale unclamped.
//
// parentPtr is a pointer-to-pointer so a still-unallocated node can be
// created in place and become visible to the caller — the same idiom
// setScale uses in package volumetric, since both functions refine a
// possibly-nil subtree top-down and must splice new nodes back into their
// parent's Children slot on the way down.
func recursiveSamplerCompressor(parentPtr **volumetric.Node, nodeIndex geo.OctreeIndex, nodeValue *float32, env *refineEnv) {
	cfg := env.cfg

	if nodeIndex.Height == cfg.TerminationHeight {
		center := geo.NodeIndexToCenterPoint(nodeIndex, cfg.MinCellWidth)
		sensorCenter := env.frame.ToSensorFrame(center)
		sample := env.model.ComputeUpdate(sensorCenter)
		*nodeValue = clamp(sample+*nodeValue, cfg.MinLogOdds-cfg.NoiseThreshold, cfg.MaxLogOdds+cfg.NoiseThreshold)
		return
	}

	aabb := geo.NodeIndexToAABB(nodeIndex, cfg.MinCellWidth)
	updateType := env.intersector.DetermineUpdateType(aabb)
	if updateType == rangeimage.FullyUnobserved {
		return
	}
	if updateType != rangeimage.PossiblyOccupied && *nodeValue < cfg.MinLogOdds+cfg.NoiseThreshold/10 {
		return
	}

	width := aabb.Width(0)
	center := aabb.Center()
	sensorCenter := env.frame.ToSensorFrame(center)
	d := env.proj.CartesianToSensorZ(sensorCenter)
	rho := float32(kUnitCubeHalfDiagonal) * width

	node := *parentPtr
	approxErr := env.model.WorstCaseApproximationError(updateType, d, rho)
	if approxErr < cfg.TerminationUpdateError {
		sample := env.model.ComputeUpdate(sensorCenter)
		if node == nil || !node.HasAtLeastOneChild() {
			*nodeValue = clamp(sample+*nodeValue, cfg.MinLogOdds-cfg.NoiseThreshold, cfg.MaxLogOdds+cfg.NoiseThreshold)
		} else {
			*nodeValue += sample
		}
		return
	}

	if node == nil {
		node = &volumetric.Node{}
		*parentPtr = node
	}
	children := wavelet.Backward(*nodeValue, node.Details)
	childIndices := geo.ChildIndices(nodeIndex)
	for i := 0; i < 8; i++ {
		recursiveSamplerCompressor(&node.Children[i], childIndices[i], &children[i], env)
		node.SetChild(uint8(i), node.Children[i])
	}
	newScale, newDetails := wavelet.Forward(children)
	node.Details = newDetails
	*nodeValue = newScale
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

// syntheticRoot returns the coarsest-needed OctreeIndex (in block-coordinate
// units, i.e. height >= treeHeight) whose AABB encloses the frame's
// reachable volume: its origin plus or minus the sensor's max range along
// every axis. recursiveTester starts here and descends one octree level at
// a time — the same index algebra used below block granularity, just
// applied above it, since block coordinates live in the same position space
// as leaf coordinates, only coarser.
func syntheticRoot(frame *rangeimage.PosedImage, treeHeight int, minCellWidth float32) geo.OctreeIndex {
	r := frame.Image.MaxRange
	o := frame.Origin
	lo := geo.PointToNearestIndex(geo.Point3D{o[0] - r, o[1] - r, o[2] - r}, geo.CellWidth(treeHeight, minCellWidth))
	hi := geo.PointToNearestIndex(geo.Point3D{o[0] + r, o[1] + r, o[2] + r}, geo.CellWidth(treeHeight, minCellWidth))

	height := treeHeight
	for {
		allMatch := true
		for axis := 0; axis < 3; axis++ {
			if blockCoord(lo[axis], height-treeHeight) != blockCoord(hi[axis], height-treeHeight) {
				allMatch = false
				break
			}
		}
		if allMatch {
			break
		}
		height++
	}

	var pos geo.Index3D
	for axis := 0; axis < 3; axis++ {
		pos[axis] = blockCoord(lo[axis], height-treeHeight)
	}
	return geo.OctreeIndex{Height: height, Position: pos}
}

// blockCoord floors v (already expressed in block-grid units) by 2^levels,
// matching arithmetic right-shift's floor-division semantics for negative
// inputs.
func blockCoord(v int32, levels int) int32 {
	if levels <= 0 {
		return v
	}
	return v >> uint(levels)
}
