package systems

import (
	"math"

	"github.com/accelagent/parkour/physics"
)

// Water dynamics coefficients.
const (
	waterDensity  = 1.0  // buoyancy relative to gravity for a unit-density body
	waterDrag     = 2.0  // linear drag per unit mass
	finThrustGain = 0.25 // thrust per unit of fin angular speed and mass
)

// ApplyWaterForces pushes submerged bodies up, slows them down and turns fin
// strokes into forward thrust along heading.
func ApplyWaterForces(parts []physics.Body, waterY float64, gravity physics.Vec2, heading float64) {
	dir := physics.V(math.Cos(heading), math.Sin(heading))
	for _, b := range parts {
		if b.Type() != physics.Dynamic || b.Position().Y > waterY {
			continue
		}
		m := b.Mass()
		force := gravity.Scale(-waterDensity * m)
		force = force.Add(b.LinearVelocity().Scale(-waterDrag * m))
		if ud := b.UserData(); ud != nil && ud.Name == "fin" {
			force = force.Add(dir.Scale(finThrustGain * m * math.Abs(b.AngularVelocity())))
		}
		b.ApplyForceToCenter(force)
	}
}
