package game

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

// LevelDescription returns the ground and ceiling profiles and the polygon
// terrain bodies of the current track.
func (e *Engine) LevelDescription() (systems.LevelDescription, error) {
	if e.terrain == nil {
		return systems.LevelDescription{}, ErrNotReset
	}
	return e.terrain.Describe(), nil
}

// WriteLevelYAML writes the current level description to path.
func (e *Engine) WriteLevelYAML(path string) error {
	desc, err := e.LevelDescription()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(desc)
	if err != nil {
		return fmt.Errorf("marshaling level: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing level file: %w", err)
	}
	return nil
}

// ReadLevelYAML loads a level description written by WriteLevelYAML.
func ReadLevelYAML(path string) (systems.LevelDescription, error) {
	var desc systems.LevelDescription
	data, err := os.ReadFile(path)
	if err != nil {
		return desc, fmt.Errorf("reading level file: %w", err)
	}
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return desc, fmt.Errorf("parsing level file: %w", err)
	}
	return desc, nil
}

// LoadDrawnLevel installs the profiles of desc as the drawn terrain of the
// next reset. Start-pad points are dropped since every reset lays its own pad.
func (e *Engine) LoadDrawnLevel(desc systems.LevelDescription) {
	padEnd := (float64(e.cfg.Terrain.Startpad) - 0.5) * e.cfg.Derived.TerrainStep
	e.SetDrawnTerrain(pointsFrom(desc.Ground, padEnd), pointsFrom(desc.Ceiling, padEnd))
}

func pointsFrom(points []physics.Vec2, x float64) []physics.Vec2 {
	var out []physics.Vec2
	for _, p := range points {
		if p.X >= x {
			out = append(out, p)
		}
	}
	return out
}
