package main

import (
	"fmt"

	"github.com/accelagent/parkour/config"
)

// ParamSpec defines a single searched parameter.
type ParamSpec struct {
	Name    string  // Column name in the log
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Starting value
}

// ParamVector is the search space: one entry per latent dimension, optionally
// followed by the water level.
type ParamVector struct {
	Specs []ParamSpec

	latentDim int
	water     bool
}

// NewParamVector builds the search space around the configured latent vector.
// Every latent coordinate is searched in [-bound, bound].
func NewParamVector(cfg *config.Config, bound float64, water bool) *ParamVector {
	pv := &ParamVector{latentDim: cfg.Terrain.LatentDim, water: water}
	for i := 0; i < cfg.Terrain.LatentDim; i++ {
		def := 0.0
		if i < len(cfg.Terrain.LatentVector) {
			def = min(max(cfg.Terrain.LatentVector[i], -bound), bound)
		}
		pv.Specs = append(pv.Specs, ParamSpec{
			Name:    fmt.Sprintf("z%d", i),
			Path:    fmt.Sprintf("terrain.latent_vector[%d]", i),
			Min:     -bound,
			Max:     bound,
			Default: def,
		})
	}
	if water {
		pv.Specs = append(pv.Specs, ParamSpec{
			Name:    "water_level",
			Path:    "terrain.water_level",
			Min:     0,
			Max:     1,
			Default: min(max(cfg.Terrain.WaterLevel, 0), 1),
		})
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the starting values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Latent returns the latent part of a parameter vector.
func (pv *ParamVector) Latent(values []float64) []float64 {
	return append([]float64(nil), values[:pv.latentDim]...)
}

// StartFrom returns the default vector with its latent part replaced by latent.
func (pv *ParamVector) StartFrom(latent []float64) ([]float64, error) {
	if len(latent) != pv.latentDim {
		return nil, fmt.Errorf("latent vector has %d coordinates, search space has %d", len(latent), pv.latentDim)
	}
	v := pv.DefaultVector()
	copy(v, latent)
	return pv.Clamp(v), nil
}

// ApplyToConfig switches cfg to latent terrain with the given parameters.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	cfg.Terrain.Mode = "latent"
	cfg.Terrain.LatentVector = pv.Latent(clamped)
	if pv.water {
		cfg.Terrain.WaterLevel = clamped[pv.latentDim]
	}
}

// ExtractFromConfig reads the searched parameters back from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, 0, len(pv.Specs))
	for i := 0; i < pv.latentDim; i++ {
		if i < len(cfg.Terrain.LatentVector) {
			v = append(v, cfg.Terrain.LatentVector[i])
		} else {
			v = append(v, 0)
		}
	}
	if pv.water {
		v = append(v, cfg.Terrain.WaterLevel)
	}
	return v
}
