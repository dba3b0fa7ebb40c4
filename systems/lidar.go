package systems

import (
	"errors"
	"fmt"
	"math"

	"github.com/accelagent/parkour/physics"
)

// ErrUnknownLidarProfile is returned for a profile name other than down, up or full.
var ErrUnknownLidarProfile = errors.New("unknown lidar profile")

// LidarProfile is the angular fan of an agent's distance sensors.
type LidarProfile struct {
	Name   string
	Angle  float64 // total sweep
	Offset float64 // angle of the first ray, measured from straight down
}

// Built-in profiles.
var (
	LidarDown = LidarProfile{Name: "down", Angle: 1.5, Offset: 0}
	LidarUp   = LidarProfile{Name: "up", Angle: 2.3, Offset: 1.5}
	LidarFull = LidarProfile{Name: "full", Angle: math.Pi, Offset: 0}
)

// ParseLidarProfile looks up a profile by name.
func ParseLidarProfile(name string) (LidarProfile, error) {
	switch name {
	case "down":
		return LidarDown, nil
	case "up":
		return LidarUp, nil
	case "full":
		return LidarFull, nil
	}
	return LidarProfile{}, fmt.Errorf("%w: %q", ErrUnknownLidarProfile, name)
}

// LidarReading is the result of one ray.
type LidarReading struct {
	P1, P2    physics.Vec2
	Fraction  float64 // 1 when nothing was hit
	Water     bool
	Grabbable bool
}

// Surface returns -1 for water, 1 for a grabbable surface and 0 otherwise.
func (r LidarReading) Surface() float64 {
	switch {
	case r.Water:
		return -1
	case r.Grabbable:
		return 1
	default:
		return 0
	}
}

// RayEnd returns the far end of ray i of n rays fanned from origin.
func RayEnd(origin physics.Vec2, profile LidarProfile, i, n int, rng float64) physics.Vec2 {
	a := profile.Angle*float64(i)/float64(n) + profile.Offset
	return physics.V(origin.X+math.Sin(a)*rng, origin.Y-math.Cos(a)*rng)
}

// CastLidars fills readings with one ray per slot from origin. Bodies of the
// casting agent, other agents and grasp sensors are transparent.
func CastLidars(world physics.World, origin physics.Vec2, profile LidarProfile, rng float64, agentID uint64, readings []LidarReading) {
	n := len(readings)
	for i := range readings {
		r := &readings[i]
		*r = LidarReading{P1: origin, P2: RayEnd(origin, profile, i, n, rng), Fraction: 1}
		world.RayCast(r.P1, r.P2, func(hit physics.RayHit) float64 {
			ud := hit.Body.UserData()
			if ud == nil {
				return -1
			}
			switch ud.Kind {
			case physics.KindBodyPart, physics.KindSensor:
				return -1
			}
			if ud.AgentID != 0 && ud.AgentID == agentID {
				return -1
			}
			if hit.Fraction > r.Fraction {
				return r.Fraction
			}
			r.Fraction = hit.Fraction
			r.Water = ud.Kind == physics.KindWater
			r.Grabbable = ud.Kind == physics.KindGrabbable
			return hit.Fraction
		})
	}
}
