package morphology

import (
	"math"

	"github.com/accelagent/parkour/physics"
)

// scale converts the pixel dimensions used to describe bodies into world units.
const scale = 30.0

func px(v float64) float64 { return v / scale }

func pxPoly(points [][2]float64) []physics.Vec2 {
	out := make([]physics.Vec2, len(points))
	for i, p := range points {
		out[i] = physics.V(px(p[0]), px(p[1]))
	}
	return out
}

// motor is a revolute joint driven by an action in [-1, 1].
type motor struct {
	joint    physics.Joint
	maxSpeed float64
	torque   float64
}

// activate maps an action to a signed max speed and a torque budget proportional to |a|.
func (m *motor) activate(a float64) {
	speed := 0.0
	switch {
	case a > 0:
		speed = m.maxSpeed
	case a < 0:
		speed = -m.maxSpeed
	}
	m.joint.SetMotorSpeed(speed)
	m.joint.SetMaxMotorTorque(m.torque * math.Min(math.Abs(a), 1))
}

// skeleton holds the bodies and joints shared by every embodiment.
type skeleton struct {
	desc      Descriptor
	agentID   uint64
	reference physics.Body
	parts     []physics.Body
	sensors   []physics.Body
	joints    []physics.Joint
	motors    []motor
}

func (s *skeleton) Descriptor() Descriptor    { return s.desc }
func (s *skeleton) ActionSize() int           { return s.desc.ActionSize }
func (s *skeleton) Reference() physics.Body   { return s.reference }
func (s *skeleton) Parts() []physics.Body     { return s.parts }
func (s *skeleton) Sensors() []physics.Body   { return s.sensors }
func (s *skeleton) Built() bool               { return s.reference != nil }

// ActivateMotors drives one motor per leading action. Trailing actions belong to sensors.
func (s *skeleton) ActivateMotors(actions []float64) {
	for i := range s.motors {
		if i >= len(actions) {
			break
		}
		s.motors[i].activate(actions[i])
	}
}

// SensorsState reports 1 for every sensor currently holding a grab joint.
func (s *skeleton) SensorsState() []float64 {
	if len(s.sensors) == 0 {
		return nil
	}
	state := make([]float64, len(s.sensors))
	for i, sensor := range s.sensors {
		if ud := sensor.UserData(); ud != nil && ud.GraspJoint != nil {
			state[i] = 1
		}
	}
	return state
}

// Destroy removes grab joints, then motor joints, then bodies.
func (s *skeleton) Destroy(world physics.World) {
	for _, sensor := range s.sensors {
		if ud := sensor.UserData(); ud != nil && ud.GraspJoint != nil {
			world.DestroyJoint(ud.GraspJoint)
			ud.GraspJoint = nil
		}
	}
	for _, j := range s.joints {
		world.DestroyJoint(j)
	}
	for _, b := range s.sensors {
		world.DestroyBody(b)
	}
	for _, b := range s.parts {
		world.DestroyBody(b)
	}
	s.reference = nil
	s.parts = nil
	s.sensors = nil
	s.joints = nil
	s.motors = nil
}

func (s *skeleton) begin(agentID uint64) {
	s.agentID = agentID
	s.parts = s.parts[:0]
	s.sensors = s.sensors[:0]
	s.joints = s.joints[:0]
	s.motors = s.motors[:0]
}

func (s *skeleton) addPart(world physics.World, name string, pos physics.Vec2, angle float64, shape physics.Shape, density, friction float64, checkContact bool) physics.Body {
	body := world.CreateBody(
		physics.BodyDef{Type: physics.Dynamic, Position: pos, Angle: angle},
		physics.FixtureDef{
			Shape:    shape,
			Density:  density,
			Friction: friction,
			Filter:   physics.AgentFilter,
		},
	)
	body.SetUserData(&physics.UserData{
		Name:         name,
		Kind:         physics.KindBodyPart,
		AgentID:      s.agentID,
		CheckContact: checkContact,
	})
	s.parts = append(s.parts, body)
	return body
}

func (s *skeleton) addSensor(world physics.World, pos physics.Vec2, radius float64) physics.Body {
	body := world.CreateBody(
		physics.BodyDef{Type: physics.Dynamic, Position: pos},
		physics.FixtureDef{
			Shape:   physics.Circle(radius),
			Density: 1,
			Filter:  physics.AgentFilter,
			Sensor:  true,
		},
	)
	body.SetUserData(&physics.UserData{
		Name:    "sensor",
		Kind:    physics.KindSensor,
		AgentID: s.agentID,
	})
	s.sensors = append(s.sensors, body)
	return body
}

// addMotor joins a and b and registers the joint as the next actuator.
func (s *skeleton) addMotor(world physics.World, a, b physics.Body, anchorA, anchorB physics.Vec2, lower, upper, maxSpeed, initialSpeed float64) {
	j := world.CreateRevoluteJoint(physics.RevoluteJointDef{
		BodyA:          a,
		BodyB:          b,
		LocalAnchorA:   anchorA,
		LocalAnchorB:   anchorB,
		EnableMotor:    true,
		EnableLimit:    true,
		LowerAngle:     lower,
		UpperAngle:     upper,
		MaxMotorTorque: s.desc.MotorTorque,
		MotorSpeed:     initialSpeed,
	})
	s.joints = append(s.joints, j)
	s.motors = append(s.motors, motor{joint: j, maxSpeed: maxSpeed, torque: s.desc.MotorTorque})
}

// addHinge joins a and b with a free joint.
func (s *skeleton) addHinge(world physics.World, a, b physics.Body, anchorA, anchorB physics.Vec2) {
	j := world.CreateRevoluteJoint(physics.RevoluteJointDef{
		BodyA:        a,
		BodyB:        b,
		LocalAnchorA: anchorA,
		LocalAnchorB: anchorB,
	})
	s.joints = append(s.joints, j)
}

func contactValue(b physics.Body) float64 {
	if ud := b.UserData(); ud != nil && ud.HasContact {
		return 1
	}
	return 0
}
