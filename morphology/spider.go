package morphology

import "github.com/accelagent/parkour/physics"

const (
	spiderLegW = 6.0 / scale
	spiderLegH = 20.0 / scale

	spiderCenterHeight = 2 * spiderLegH
	spiderWidth        = 50.0 / scale
)

var spiderHull = [][2]float64{{-20, 10}, {20, 10}, {25, 0}, {20, -10}, {-20, -10}, {-25, 0}}

// Hip anchors along the hull, back to front.
var spiderHips = []float64{-18, -6, 6, 18}

type spider struct {
	skeleton
	lowerLegs []physics.Body
}

func newSpider(d Descriptor) *spider {
	return &spider{skeleton: skeleton{desc: d}}
}

// Build creates a hull carrying four two-segment legs.
func (s *spider) Build(world physics.World, agentID uint64, x, y float64) {
	s.begin(agentID)
	s.lowerLegs = s.lowerLegs[:0]

	hull := s.addPart(world, "hull", physics.V(x, y), 0,
		physics.Polygon(pxPoly(spiderHull)...), 5*s.desc.Density, 0.1, true)
	s.reference = hull

	for i, hipX := range spiderHips {
		side := 1.0
		if i%2 == 0 {
			side = -1
		}
		ax := px(hipX)
		upper := s.addPart(world, "upper_leg",
			physics.V(x+ax, y-spiderLegH/2), 0,
			physics.Box(spiderLegW/2, spiderLegH/2), s.desc.Density, 0.2, false)
		s.addMotor(world, hull, upper,
			physics.V(ax, 0), physics.V(0, spiderLegH/2),
			-0.8, 0.8, speedHip, side)

		lower := s.addPart(world, "lower_leg",
			physics.V(x+ax, y-spiderLegH*3/2), 0,
			physics.Box(0.8*spiderLegW/2, spiderLegH/2), s.desc.Density, 0.2, false)
		s.addMotor(world, upper, lower,
			physics.V(0, -spiderLegH/2), physics.V(0, spiderLegH/2),
			-1.2, 1.2, speedKnee, 1)
		s.lowerLegs = append(s.lowerLegs, lower)
	}
}

// MotorsState mirrors the bipedal layout for each of the four legs.
func (s *spider) MotorsState() []float64 {
	state := make([]float64, 0, 5*len(s.lowerLegs))
	for leg := range s.lowerLegs {
		hip := s.motors[2*leg].joint
		knee := s.motors[2*leg+1].joint
		state = append(state,
			hip.Angle(),
			hip.Speed()/speedHip,
			knee.Angle()+1.0,
			knee.Speed()/speedKnee,
			contactValue(s.lowerLegs[leg]),
		)
	}
	return state
}
