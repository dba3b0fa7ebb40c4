package systems

import (
	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/physics"
)

// ObservationInput gathers what an agent perceives after a world step.
type ObservationInput struct {
	Angle           float64
	AngularVelocity float64
	Velocity        physics.Vec2
	Motors          []float64
	Sensors         []float64
	Lidars          []LidarReading
}

// ObservationSize returns the length of the vector BuildObservation produces.
func ObservationSize(motors, sensors, lidars int, includeSurface bool) int {
	n := 4 + motors + sensors + lidars
	if includeSurface {
		n += lidars
	}
	return n
}

// BuildObservation lays out head angle and normalized velocities, then motor
// state, grasp sensor state and lidar fractions.
func BuildObservation(cfg *config.Config, in ObservationInput) []float64 {
	p := cfg.Physics
	fps := float64(p.FPS)
	include := cfg.Reward.IncludeSurface

	obs := make([]float64, 0, ObservationSize(len(in.Motors), len(in.Sensors), len(in.Lidars), include))
	obs = append(obs,
		in.Angle,
		2.0*in.AngularVelocity/fps,
		0.3*in.Velocity.X*(p.ViewportW/p.Scale)/fps,
		0.3*in.Velocity.Y*(p.ViewportH/p.Scale)/fps,
	)
	obs = append(obs, in.Motors...)
	obs = append(obs, in.Sensors...)
	for _, l := range in.Lidars {
		obs = append(obs, l.Fraction)
	}
	if include {
		for _, l := range in.Lidars {
			obs = append(obs, l.Surface())
		}
	}
	return obs
}
