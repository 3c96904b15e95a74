// Package config builds a volumetric.DataStructure from a loosely-typed
// parameter map, the Go counterpart of
// volumetric_data_structure_factory.cc's variant dispatch.
package config

import (
	"fmt"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/nospelt/wavemap/internal/wmerrors"
	"github.com/nospelt/wavemap/pkg/wavemap/volumetric"
)

// DataStructureType names one of the four concrete volumetric variants.
type DataStructureType string

const (
	HashedBlocks        DataStructureType = "HashedBlocks"
	Octree              DataStructureType = "Octree"
	WaveletOctree       DataStructureType = "WaveletOctree"
	HashedWaveletOctree DataStructureType = "HashedWaveletOctree"
)

// IsValid reports whether t names one of the four supported variants.
func (t DataStructureType) IsValid() bool {
	switch t {
	case HashedBlocks, Octree, WaveletOctree, HashedWaveletOctree:
		return true
	default:
		return false
	}
}

// VolumetricDataStructureConfig carries the parameters common to every
// variant's constructor plus the log-odds bounds a caller typically wants
// set alongside them. It holds no termination or ESDF settings; those live
// in integrator.Config and esdf.Config.
type VolumetricDataStructureConfig struct {
	MinCellWidth float32
	TreeHeight   int
	MinLogOdds   float32
	MaxLogOdds   float32
}

// FromParamMap decodes a DataStructureType and VolumetricDataStructureConfig
// out of a loosely-typed parameter map (as would come from a YAML/JSON
// config file). Returns a NotFoundError if "type" is absent or unknown.
func FromParamMap(params map[string]any) (DataStructureType, VolumetricDataStructureConfig, error) {
	var cfg VolumetricDataStructureConfig

	raw, ok := params["type"]
	if !ok {
		return "", cfg, &wmerrors.NotFoundError{Param: "type"}
	}
	typeStr, ok := raw.(string)
	if !ok {
		return "", cfg, &wmerrors.ConfigError{Param: "type", Reason: "must be a string"}
	}
	dsType := DataStructureType(typeStr)
	if !dsType.IsValid() {
		return "", cfg, &wmerrors.NotFoundError{Param: fmt.Sprintf("type=%s", typeStr)}
	}

	var err error
	if cfg.MinCellWidth, err = floatParam(params, "min_cell_width", 0.1); err != nil {
		return "", cfg, err
	}
	if cfg.TreeHeight, err = intParam(params, "tree_height", 14); err != nil {
		return "", cfg, err
	}
	if cfg.MinLogOdds, err = floatParam(params, "min_log_odds", -2); err != nil {
		return "", cfg, err
	}
	if cfg.MaxLogOdds, err = floatParam(params, "max_log_odds", 4); err != nil {
		return "", cfg, err
	}

	return dsType, cfg, nil
}

func floatParam(params map[string]any, key string, def float32) (float32, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float32:
		return v, nil
	case float64:
		return float32(v), nil
	default:
		return 0, &wmerrors.ConfigError{Param: key, Reason: "must be numeric"}
	}
}

func intParam(params map[string]any, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, &wmerrors.ConfigError{Param: key, Reason: "must be an integer"}
	}
}

// RequireHashedWaveletOctree asserts that ds is the *volumetric.Map variant
// the integrator targets, returning a TypeMismatchError otherwise. Per
// spec.md §9, the integrator is specialized to the hashed-wavelet variant
// and declines every other polymorphic DataStructure value; this is the
// call-boundary check a host runs after Create/FromParamMap (or after
// persistence.FileToMap, which always hands back a *volumetric.HashedBlocks)
// hand it a DataStructure of unknown concrete type.
func RequireHashedWaveletOctree(ds volumetric.DataStructure) (*volumetric.Map, error) {
	m, ok := ds.(*volumetric.Map)
	if !ok {
		return nil, &wmerrors.TypeMismatchError{Expected: string(HashedWaveletOctree), Actual: fmt.Sprintf("%T", ds)}
	}
	return m, nil
}

// Create builds the concrete volumetric.DataStructure named by params'
// "type" entry. If FromParamMap fails and defaultType is non-nil, it warns
// and falls back to building defaultType with FromParamMap's own default
// values (min_cell_width 0.1, tree_height 14, log-odds -2..4) instead of
// failing outright — the same try/default/fail shape as
// volumetric_data_structure_factory.cc's factory function.
func Create(params map[string]any, defaultType *DataStructureType) (volumetric.DataStructure, error) {
	dsType, cfg, err := FromParamMap(params)
	if err != nil {
		if defaultType == nil {
			return nil, err
		}
		cclog.Warnf("[CONFIG]> %v, falling back to default type %q", err, *defaultType)
		dsType = *defaultType
		cfg = VolumetricDataStructureConfig{MinCellWidth: 0.1, TreeHeight: 14, MinLogOdds: -2, MaxLogOdds: 4}
	}

	switch dsType {
	case HashedBlocks:
		return volumetric.NewHashedBlocks(cfg.TreeHeight, cfg.MinCellWidth), nil
	case Octree:
		return volumetric.NewOctree(cfg.TreeHeight, cfg.MinCellWidth), nil
	case WaveletOctree:
		return volumetric.NewWaveletOctree(cfg.TreeHeight, cfg.MinCellWidth), nil
	case HashedWaveletOctree:
		return volumetric.NewMap(cfg.TreeHeight, cfg.MinCellWidth), nil
	default:
		return nil, &wmerrors.ConfigError{Param: "type", Reason: fmt.Sprintf("unsupported type %q", dsType)}
	}
}
