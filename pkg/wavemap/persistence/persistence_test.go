package persistence

import (
	"path/filepath"
	"testing"

	"github.com/nospelt/wavemap/pkg/wavemap/geo"
	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
)

func TestRoundTripHashedBlocks(t *testing.T) {
	src := volumetric.NewHashedBlocks(2, 0.1)
	src.SetCellValue(geo.Index3D{0, 0, 0}, 1.5)
	src.SetCellValue(geo.Index3D{3, 3, 3}, -2.0)
	src.SetCellValue(geo.Index3D{10, -4, 7}, 0.25)

	path := filepath.Join(t.TempDir(), "snapshot.wmap")
	if err := MapToFile(src, path); err != nil {
		t.Fatalf("MapToFile: %v", err)
	}

	loaded, err := FileToMap(path)
	if err != nil {
		t.Fatalf("FileToMap: %v", err)
	}

	cases := []geo.Index3D{{0, 0, 0}, {3, 3, 3}, {10, -4, 7}, {1, 1, 1}}
	for _, idx := range cases {
		want := src.GetCellValue(idx)
		got := loaded.GetCellValue(idx)
		if want != got {
			t.Errorf("cell %v = %v, want %v", idx, got, want)
		}
	}
}

func TestRoundTripFromOctree(t *testing.T) {
	src := volumetric.NewOctree(3, 0.1)
	src.SetCellValue(geo.Index3D{1, 2, 3}, 4.0)

	path := filepath.Join(t.TempDir(), "snapshot.wmap")
	if err := MapToFile(src, path); err != nil {
		t.Fatalf("MapToFile: %v", err)
	}

	loaded, err := FileToMap(path)
	if err != nil {
		t.Fatalf("FileToMap: %v", err)
	}
	if got := loaded.GetCellValue(geo.Index3D{1, 2, 3}); got != 4.0 {
		t.Errorf("cell = %v, want 4.0", got)
	}
}

func TestFileToMapMissingFile(t *testing.T) {
	_, err := FileToMap(filepath.Join(t.TempDir(), "does-not-exist.wmap"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
