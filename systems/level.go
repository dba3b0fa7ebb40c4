// Package systems holds the terrain, sensing and scoring rules applied each tick.
package systems

import "github.com/accelagent/parkour/physics"

// LevelBody is a polygon terrain body in a level description.
type LevelBody struct {
	Type     string         `json:"type" yaml:"type"`
	Vertices []physics.Vec2 `json:"vertices" yaml:"vertices"`
}

// LevelDescription is the exportable shape of a generated track.
type LevelDescription struct {
	Ground  []physics.Vec2 `json:"terrain_ground" yaml:"terrain_ground"`
	Ceiling []physics.Vec2 `json:"terrain_ceiling" yaml:"terrain_ceiling"`
	Bodies  []LevelBody    `json:"terrain_bodies" yaml:"terrain_bodies"`
	WaterY  float64        `json:"water_y" yaml:"water_y"`
}

// Describe copies the profiles and polygon bodies of t.
func (t *Terrain) Describe() LevelDescription {
	d := LevelDescription{
		Ground:  append([]physics.Vec2(nil), t.Ground...),
		Ceiling: append([]physics.Vec2(nil), t.Ceiling...),
		Bodies:  make([]LevelBody, 0, len(t.Bodies)),
		WaterY:  t.WaterY,
	}
	for _, b := range t.Bodies {
		d.Bodies = append(d.Bodies, LevelBody{
			Type:     b.Type,
			Vertices: append([]physics.Vec2(nil), b.Vertices...),
		})
	}
	return d
}
