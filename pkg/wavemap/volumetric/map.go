package volumetric

import (
	"encoding/binary"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
)

// BlockIndex is the hashed map's key: a block's coordinate in units of
// block width.
type BlockIndex = geo.Index3D

// DataStructure is the capability every volumetric variant exposes to
// generic consumers (the ESDF generator, the collision-free sampler,
// persistence round trips). It is the polymorphism point spec'd for the
// config factory: callers program against this interface and never need to
// know which concrete variant backs it.
type DataStructure interface {
	GetCellValue(idx geo.Index3D) float32
	GetMinCellWidth() float32
	IterateBlocks(f func(blockIdx geo.Index3D, leafIdx geo.Index3D, value float32) bool)
	// BlockSide is the number of cells per axis covered by one blockIdx seen
	// in IterateBlocks, letting a generic consumer (e.g. the ESDF generator)
	// reconstruct a global cell index from a block/leaf pair it was handed.
	BlockSide() int
}

const defaultNumShards = 64

type shard struct {
	mu     sync.RWMutex
	blocks map[BlockIndex]*Block
}

// Map is the hashed wavelet octree block store (the HashedWaveletOctree
// variant): a sharded concurrent map from block coordinate to Block. Shard
// selection hashes the block's coordinate with xxh3 and masks it down to a
// fixed, power-of-two shard count, generalizing the teacher's
// per-node-tree sync.RWMutex discipline (pkg/metricstore/level.go's
// Level.lock, used with double-checked locking in findLevelOrCreate) from a
// single string-keyed tree to many independently-locked shards.
type Map struct {
	TreeHeight   int
	MinCellWidth float32

	shards []shard
}

// NewMap returns an empty block store. treeHeight is the block height H:
// each block spans (1<<treeHeight) leaf cells per axis.
func NewMap(treeHeight int, minCellWidth float32) *Map {
	m := &Map{TreeHeight: treeHeight, MinCellWidth: minCellWidth, shards: make([]shard, defaultNumShards)}
	for i := range m.shards {
		m.shards[i].blocks = make(map[BlockIndex]*Block)
	}
	return m
}

func (m *Map) shardFor(idx BlockIndex) *shard {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(idx[0]))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(idx[1]))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(idx[2]))
	h := xxh3.Hash(buf[:])
	return &m.shards[h&uint64(len(m.shards)-1)]
}

// GetOrAllocateBlock returns the block at idx, allocating it under the
// shard's exclusive lock if it doesn't exist yet. Reads take the shard's
// RLock first and only escalate to a Lock (re-checking before inserting) on
// a miss — the same double-checked-locking shape as
// Level.findLevelOrCreate.
func (m *Map) GetOrAllocateBlock(idx BlockIndex) *Block {
	s := m.shardFor(idx)

	s.mu.RLock()
	if b, ok := s.blocks[idx]; ok {
		s.mu.RUnlock()
		return b
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.blocks[idx]; ok {
		return b
	}
	b := NewBlock()
	s.blocks[idx] = b
	return b
}

// Block returns the block at idx without allocating it.
func (m *Map) Block(idx BlockIndex) (*Block, bool) {
	s := m.shardFor(idx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[idx]
	return b, ok
}

// HasBlock reports whether idx has been allocated.
func (m *Map) HasBlock(idx BlockIndex) bool {
	_, ok := m.Block(idx)
	return ok
}

// NumBlocks returns the number of allocated blocks.
func (m *Map) NumBlocks() int {
	n := 0
	for i := range m.shards {
		m.shards[i].mu.RLock()
		n += len(m.shards[i].blocks)
		m.shards[i].mu.RUnlock()
	}
	return n
}

// Blocks iterates every allocated block, copying each shard's key set under
// its read lock before invoking f so f can itself touch the map (e.g.
// re-fetch a block) without deadlocking. Stops early if f returns false.
func (m *Map) Blocks(f func(BlockIndex, *Block) bool) {
	type kv struct {
		idx BlockIndex
		b   *Block
	}
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		items := make([]kv, 0, len(s.blocks))
		for k, v := range s.blocks {
			items = append(items, kv{k, v})
		}
		s.mu.RUnlock()

		for _, it := range items {
			if !f(it.idx, it.b) {
				return
			}
		}
	}
}

// Prune collapses every all-baseline subtree in every block back to a nil
// child, per the invariant that a block never stores a node whose subtree
// is the unknown/zero baseline. Run as an explicit sweep rather than inline
// during integration (see DESIGN.md) — the same separation the teacher
// draws between per-write logic and its periodic retention sweep.
func (m *Map) Prune() {
	m.Blocks(func(_ BlockIndex, b *Block) bool {
		pruneNode(b.RootNode)
		return true
	})
}

// SizeBytes estimates the store's resident size for diagnostics: a small
// fixed cost per block plus a small fixed cost per allocated internal node.
// It does not claim to be exact (Go's runtime header/alignment overhead
// isn't modeled) — it exists for human-facing size reporting, not for
// memory accounting.
func (m *Map) SizeBytes() int64 {
	const blockOverhead = 4 + 8    // RootScale + RootNode pointer
	const nodeOverhead = 7*4 + 8*8 + 1 // Details + Children pointers + childMask

	var total int64
	m.Blocks(func(_ BlockIndex, b *Block) bool {
		total += blockOverhead + countNodes(b.RootNode)*nodeOverhead
		return true
	})
	return total
}

func countNodes(n *Node) int64 {
	if n == nil {
		return 0
	}
	total := int64(1)
	for i := range n.Children {
		total += countNodes(n.Children[i])
	}
	return total
}

// Size renders SizeBytes as a human-readable string (e.g. "4.2 MB") via
// go-humanize, matching the corpus's convention for diagnostic byte counts.
func (m *Map) Size() string {
	return humanize.Bytes(uint64(m.SizeBytes()))
}

func (m *Map) blockIndexOf(idx geo.Index3D) (blockIdx, local geo.Index3D) {
	shift := uint(m.TreeHeight)
	side := int32(1) << shift
	blockIdx = geo.Index3D{idx[0] >> shift, idx[1] >> shift, idx[2] >> shift}
	local = geo.Index3D{idx[0] - blockIdx[0]*side, idx[1] - blockIdx[1]*side, idx[2] - blockIdx[2]*side}
	return
}

// GetCellValue implements DataStructure.
func (m *Map) GetCellValue(idx geo.Index3D) float32 {
	blockIdx, local := m.blockIndexOf(idx)
	block, ok := m.Block(blockIdx)
	if !ok {
		return 0
	}
	return descendScale(block.RootNode, block.RootScale, m.TreeHeight, local)
}

// SetCellValue writes v at idx, allocating the block and any internal nodes
// needed to reach the leaf. It is an unconditional test-construction
// helper, not the path the integrator uses (see recursiveSamplerCompressor
// in package integrator for the gated, approximation-error-aware version).
func (m *Map) SetCellValue(idx geo.Index3D, v float32) {
	blockIdx, local := m.blockIndexOf(idx)
	block := m.GetOrAllocateBlock(blockIdx)
	setScale(&block.RootNode, &block.RootScale, m.TreeHeight, local, v)
}

// GetMinCellWidth implements DataStructure.
func (m *Map) GetMinCellWidth() float32 {
	return m.MinCellWidth
}

// BlockSide implements DataStructure.
func (m *Map) BlockSide() int {
	return 1 << uint(m.TreeHeight)
}

// IterateBlocks implements DataStructure, enumerating every leaf cell of
// every block (leafIdx is local to its block).
func (m *Map) IterateBlocks(f func(blockIdx geo.Index3D, leafIdx geo.Index3D, value float32) bool) {
	m.Blocks(func(blockIdx BlockIndex, b *Block) bool {
		return walkNode(b.RootNode, b.RootScale, geo.OctreeIndex{Height: m.TreeHeight}, func(leaf geo.Index3D, v float32) bool {
			return f(blockIdx, leaf, v)
		})
	})
}
