package config

import (
	"testing"

	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
)

func TestFromParamMapMissingType(t *testing.T) {
	_, _, err := FromParamMap(map[string]any{})
	if err == nil {
		t.Fatalf("expected an error for a missing \"type\" key")
	}
}

func TestFromParamMapUnknownType(t *testing.T) {
	_, _, err := FromParamMap(map[string]any{"type": "NotAVariant"})
	if err == nil {
		t.Fatalf("expected an error for an unknown type")
	}
}

func TestFromParamMapDecodesOverrides(t *testing.T) {
	dsType, cfg, err := FromParamMap(map[string]any{
		"type":           "Octree",
		"min_cell_width": float64(0.2),
		"tree_height":    float64(10),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsType != Octree {
		t.Errorf("type = %v, want Octree", dsType)
	}
	if cfg.MinCellWidth != 0.2 {
		t.Errorf("MinCellWidth = %v, want 0.2", cfg.MinCellWidth)
	}
	if cfg.TreeHeight != 10 {
		t.Errorf("TreeHeight = %v, want 10", cfg.TreeHeight)
	}
}

func TestCreateBuildsEachVariant(t *testing.T) {
	cases := []DataStructureType{HashedBlocks, Octree, WaveletOctree, HashedWaveletOctree}
	for _, dsType := range cases {
		ds, err := Create(map[string]any{"type": string(dsType)}, nil)
		if err != nil {
			t.Fatalf("Create(%v) returned error: %v", dsType, err)
		}
		if ds == nil {
			t.Fatalf("Create(%v) returned a nil DataStructure", dsType)
		}
		var _ volumetric.DataStructure = ds
	}
}

func TestCreateFallsBackToDefault(t *testing.T) {
	def := HashedBlocks
	ds, err := Create(map[string]any{}, &def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ds.(*volumetric.HashedBlocks); !ok {
		t.Errorf("Create fell back to %T, want *volumetric.HashedBlocks", ds)
	}
}

func TestCreateFailsWithoutDefault(t *testing.T) {
	_, err := Create(map[string]any{}, nil)
	if err == nil {
		t.Fatalf("expected an error when type is missing and no default is given")
	}
}

func TestRequireHashedWaveletOctreeAcceptsMap(t *testing.T) {
	ds, err := Create(map[string]any{"type": string(HashedWaveletOctree)}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := RequireHashedWaveletOctree(ds); err != nil {
		t.Fatalf("RequireHashedWaveletOctree rejected a *volumetric.Map: %v", err)
	}
}

func TestRequireHashedWaveletOctreeRejectsOtherVariants(t *testing.T) {
	ds, err := Create(map[string]any{"type": string(HashedBlocks)}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := RequireHashedWaveletOctree(ds); err == nil {
		t.Fatalf("expected a TypeMismatchError for a *volumetric.HashedBlocks")
	}
}
