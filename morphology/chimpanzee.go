package morphology

import "github.com/accelagent/parkour/physics"

const (
	chimpTorsoHW  = 8.0 / scale
	chimpTorsoHH  = 20.0 / scale
	chimpLimbW    = 6.0 / scale
	chimpLimbH    = 24.0 / scale
	chimpShoulder = 18.0 / scale
	chimpHip      = -18.0 / scale
	chimpHand     = 4.0 / scale

	chimpMotors  = 8
	chimpSensors = 2

	chimpCenterHeight = -chimpHip + 2*chimpLimbH
	chimpWidth        = 30.0 / scale

	speedShoulder = 4.0
	speedElbow    = 6.0
)

type chimpanzee struct {
	skeleton
	speeds []float64
}

func newChimpanzee(d Descriptor) *chimpanzee {
	return &chimpanzee{skeleton: skeleton{desc: d}}
}

// Build creates a torso with two arms ending in grasping hands and two legs.
// Motors are ordered shoulders and elbows first, then hips and knees; the two
// trailing actions drive the hands.
func (c *chimpanzee) Build(world physics.World, agentID uint64, x, y float64) {
	c.begin(agentID)
	c.speeds = c.speeds[:0]

	torso := c.addPart(world, "torso", physics.V(x, y), 0,
		physics.Box(chimpTorsoHW, chimpTorsoHH), 3*c.desc.Density, 0.1, true)
	c.reference = torso

	for _, side := range []float64{-1, 1} {
		upperArm := c.addPart(world, "upper_arm",
			physics.V(x, y+chimpShoulder+chimpLimbH/2), 0,
			physics.Box(chimpLimbW/2, chimpLimbH/2), c.desc.Density, 0.2, false)
		c.addMotor(world, torso, upperArm,
			physics.V(0, chimpShoulder), physics.V(0, -chimpLimbH/2),
			-2.0, 2.0, speedShoulder, side)
		c.speeds = append(c.speeds, speedShoulder)

		lowerArm := c.addPart(world, "lower_arm",
			physics.V(x, y+chimpShoulder+chimpLimbH*3/2), 0,
			physics.Box(0.8*chimpLimbW/2, chimpLimbH/2), c.desc.Density, 0.2, false)
		c.addMotor(world, upperArm, lowerArm,
			physics.V(0, chimpLimbH/2), physics.V(0, -chimpLimbH/2),
			-1.5, 1.5, speedElbow, 1)
		c.speeds = append(c.speeds, speedElbow)

		hand := c.addSensor(world, physics.V(x, y+chimpShoulder+2*chimpLimbH), chimpHand)
		c.addHinge(world, lowerArm, hand, physics.V(0, chimpLimbH/2), physics.Vec2{})
	}

	for _, side := range []float64{-1, 1} {
		upperLeg := c.addPart(world, "upper_leg",
			physics.V(x, y+chimpHip-chimpLimbH/2), 0,
			physics.Box(chimpLimbW/2, chimpLimbH/2), c.desc.Density, 0.2, false)
		c.addMotor(world, torso, upperLeg,
			physics.V(0, chimpHip), physics.V(0, chimpLimbH/2),
			-1.0, 1.0, speedHip, side)
		c.speeds = append(c.speeds, speedHip)

		lowerLeg := c.addPart(world, "lower_leg",
			physics.V(x, y+chimpHip-chimpLimbH*3/2), 0,
			physics.Box(0.8*chimpLimbW/2, chimpLimbH/2), c.desc.Density, 0.2, false)
		c.addMotor(world, upperLeg, lowerLeg,
			physics.V(0, -chimpLimbH/2), physics.V(0, chimpLimbH/2),
			-1.5, 0, speedKnee, 1)
		c.speeds = append(c.speeds, speedKnee)
	}
}

// MotorsState returns angle and normalized speed for every motor.
func (c *chimpanzee) MotorsState() []float64 {
	state := make([]float64, 0, 2*len(c.motors))
	for i, m := range c.motors {
		state = append(state, m.joint.Angle(), m.joint.Speed()/c.speeds[i])
	}
	return state
}
