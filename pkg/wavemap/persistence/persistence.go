// Package persistence defines the call boundary host code uses to load and
// save a volumetric.DataStructure, mirroring the io::fileToMap/io::mapToFile
// call sites in esdf_extractor.cc. The wire format is explicitly out of
// scope for this repo: this is glue, not a component, so it picks the
// simplest format that lets the boundary be exercised — a length-prefixed
// gob envelope over the dense HashedBlocks representation.
package persistence

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"os"

	"github.com/nospelt/wavemap/internal/wmerrors"
	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
)

// envelope is the on-disk payload: just enough of HashedBlocks' state to
// round-trip it losslessly.
type envelope struct {
	TreeHeight   int
	MinCellWidth float32
	Blocks       map[geo.Index3D][]float32
}

// MapToFile serializes m's cells into path. m is densified into a
// HashedBlocks snapshot first (via IterateBlocks) regardless of its
// original runtime variant, since the on-disk format commits to one shape.
func MapToFile(m volumetric.DataStructure, path string) error {
	side := m.BlockSide()
	env := envelope{
		MinCellWidth: m.GetMinCellWidth(),
		Blocks:       make(map[geo.Index3D][]float32),
	}
	for env.TreeHeight = 0; 1<<uint(env.TreeHeight) < side; env.TreeHeight++ {
	}

	m.IterateBlocks(func(blockIdx, leafIdx geo.Index3D, value float32) bool {
		arr, ok := env.Blocks[blockIdx]
		if !ok {
			arr = make([]float32, side*side*side)
			env.Blocks[blockIdx] = arr
		}
		arr[geo.Index3DToLinearIndex(leafIdx, side)] = value
		return true
	})

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return &wmerrors.ResourceError{Op: "encode", Path: path, Err: err}
	}

	var lenPrefix [8]byte
	binary.LittleEndian.PutUint64(lenPrefix[:], uint64(buf.Len()))

	f, err := os.Create(path)
	if err != nil {
		return &wmerrors.ResourceError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	if _, err := f.Write(lenPrefix[:]); err != nil {
		return &wmerrors.ResourceError{Op: "write", Path: path, Err: err}
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return &wmerrors.ResourceError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// FileToMap reads back a map written by MapToFile, always as a
// *volumetric.HashedBlocks — callers needing a different runtime variant
// should check with a TypeMismatchError at the call site.
func FileToMap(path string) (volumetric.DataStructure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &wmerrors.ResourceError{Op: "read", Path: path, Err: err}
	}
	if len(data) < 8 {
		return nil, &wmerrors.ResourceError{Op: "read", Path: path, Err: os.ErrInvalid}
	}
	payloadLen := binary.LittleEndian.Uint64(data[:8])
	payload := data[8:]
	if uint64(len(payload)) != payloadLen {
		return nil, &wmerrors.ResourceError{Op: "read", Path: path, Err: os.ErrInvalid}
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return nil, &wmerrors.ResourceError{Op: "decode", Path: path, Err: err}
	}

	out := volumetric.NewHashedBlocks(env.TreeHeight, env.MinCellWidth)
	side := out.BlockSide()
	for blockIdx, arr := range env.Blocks {
		for linear, v := range arr {
			if v == 0 {
				continue
			}
			out.SetCellValue(out.IndexFromBlockAndLocal(blockIdx, geo.LinearIndexToIndex3D(linear, side)), v)
		}
	}
	return out, nil
}
