package morphology

import "github.com/accelagent/parkour/physics"

const (
	bipedalLegDown = -8.0 / scale
	bipedalLegW    = 8.0 / scale
	bipedalLegH    = 34.0 / scale

	bipedalCenterHeight = 2*bipedalLegH + bipedalLegDown
	bipedalWidth        = 64.0 / scale

	speedHip  = 4.0
	speedKnee = 6.0
)

var bipedalHull = [][2]float64{{-30, 9}, {6, 9}, {34, 1}, {34, -8}, {-30, -8}}

type bipedal struct {
	skeleton
	lowerLegs []physics.Body
}

func newBipedal(d Descriptor) *bipedal {
	return &bipedal{skeleton: skeleton{desc: d}}
}

// Build creates a hull with two legs, each an upper and lower segment on hip and knee motors.
func (b *bipedal) Build(world physics.World, agentID uint64, x, y float64) {
	b.begin(agentID)
	b.lowerLegs = b.lowerLegs[:0]

	hull := b.addPart(world, "hull", physics.V(x, y), 0,
		physics.Polygon(pxPoly(bipedalHull)...), 5*b.desc.Density, 0.1, true)
	b.reference = hull

	for _, side := range []float64{-1, 1} {
		upper := b.addPart(world, "upper_leg",
			physics.V(x, y-bipedalLegH/2-bipedalLegDown), side*0.05,
			physics.Box(bipedalLegW/2, bipedalLegH/2), b.desc.Density, 0.2, false)
		b.addMotor(world, hull, upper,
			physics.V(0, bipedalLegDown), physics.V(0, bipedalLegH/2),
			-0.8, 1.1, speedHip, side)

		lower := b.addPart(world, "lower_leg",
			physics.V(x, y-bipedalLegH*3/2-bipedalLegDown), side*0.05,
			physics.Box(0.8*bipedalLegW/2, bipedalLegH/2), b.desc.Density, 0.2, false)
		b.addMotor(world, upper, lower,
			physics.V(0, -bipedalLegH/2), physics.V(0, bipedalLegH/2),
			-1.6, -0.1, speedKnee, 1)
		b.lowerLegs = append(b.lowerLegs, lower)
	}
}

// MotorsState returns, per leg, hip angle and speed, knee angle and speed, and ground contact.
func (b *bipedal) MotorsState() []float64 {
	state := make([]float64, 0, 10)
	for leg := 0; leg < 2; leg++ {
		hip := b.motors[2*leg].joint
		knee := b.motors[2*leg+1].joint
		state = append(state,
			hip.Angle(),
			hip.Speed()/speedHip,
			knee.Angle()+1.0,
			knee.Speed()/speedKnee,
			contactValue(b.lowerLegs[leg]),
		)
	}
	return state
}
