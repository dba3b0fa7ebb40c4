// Package components defines the ECS components attached to agent entities.
package components

import (
	"github.com/accelagent/parkour/morphology"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

// Identity names an agent. ID is stable for the agent's lifetime and never reused.
type Identity struct {
	ID   uint64
	Name string
	Age  string
}

// Embodiment links the entity to its physical body.
type Embodiment struct {
	Body       morphology.Embodiment
	Descriptor morphology.Descriptor
}

// Sensing holds the lidar fan of an agent.
type Sensing struct {
	Profile systems.LidarProfile
	Lidars  []systems.LidarReading
}

// Control holds the actions applied on the next step.
type Control struct {
	Actions []float64
}

// Survival counts ticks in and out of water.
type Survival struct {
	systems.SurvivalState
}

// Episode accumulates per-episode scoring state.
type Episode struct {
	PrevShaping float64
	HasPrev     bool
	Return      float64
	Critical    bool // latched by the contact listener
	Ticks       int
	Done        bool
	Success     bool
}

// Placement remembers where an agent spawns and whether it is drawn.
type Placement struct {
	InitPos *physics.Vec2
	Visible bool
}
