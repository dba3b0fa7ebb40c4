package morphology

import "github.com/accelagent/parkour/physics"

const (
	fishTailHW = 8.0 / scale
	fishTailHH = 3.0 / scale
	fishFinHW  = 4.0 / scale
	fishFinHH  = 8.0 / scale

	fishCenterHeight = 10.0 / scale
	fishWidth        = 72.0 / scale

	speedTail = 6.0
)

var fishBody = [][2]float64{{-20, 0}, {-10, 8}, {20, 6}, {25, 0}, {20, -6}, {-10, -8}}

type fish struct {
	skeleton
}

func newFish(d Descriptor) *fish {
	return &fish{skeleton: skeleton{desc: d}}
}

// Build creates a head and a two-joint tail ending in a fin. Fins are tagged so
// water dynamics can turn their strokes into thrust.
func (f *fish) Build(world physics.World, agentID uint64, x, y float64) {
	f.begin(agentID)

	head := f.addPart(world, "head", physics.V(x, y), 0,
		physics.Polygon(pxPoly(fishBody)...), f.desc.Density, 0.1, false)
	f.reference = head

	tail := f.addPart(world, "fin",
		physics.V(x-px(20)-fishTailHW, y), 0,
		physics.Box(fishTailHW, fishTailHH), f.desc.Density, 0.1, false)
	f.addMotor(world, head, tail,
		physics.V(px(-20), 0), physics.V(fishTailHW, 0),
		-0.6, 0.6, speedTail, 1)

	fin := f.addPart(world, "fin",
		physics.V(x-px(20)-2*fishTailHW-fishFinHW, y), 0,
		physics.Box(fishFinHW, fishFinHH), f.desc.Density, 0.1, false)
	f.addMotor(world, tail, fin,
		physics.V(-fishTailHW, 0), physics.V(fishFinHW, 0),
		-0.8, 0.8, speedTail, -1)
}

// MotorsState returns angle and normalized speed for both tail joints.
func (f *fish) MotorsState() []float64 {
	state := make([]float64, 0, 4)
	for _, m := range f.motors {
		state = append(state, m.joint.Angle(), m.joint.Speed()/speedTail)
	}
	return state
}
