package physics

import (
	"github.com/ByteArena/box2d"
)

// Box2DWorld implements World on top of the ByteArena Box2D port.
type Box2DWorld struct {
	world    box2d.B2World
	listener ContactListener
}

// NewBox2DWorld creates a solver world with the given gravity.
func NewBox2DWorld(gravity Vec2) *Box2DWorld {
	w := &Box2DWorld{world: box2d.MakeB2World(toB2(gravity))}
	return w
}

type box2dBody struct {
	body     *box2d.B2Body
	fixtures []FixtureDef
	data     *UserData
}

type box2dJoint struct {
	joint *box2d.B2RevoluteJoint
	a, b  Body
}

func toB2(v Vec2) box2d.B2Vec2 { return box2d.MakeB2Vec2(v.X, v.Y) }

func fromB2(v box2d.B2Vec2) Vec2 { return Vec2{X: v.X, Y: v.Y} }

func toB2Shape(s Shape) box2d.B2ShapeInterface {
	switch s.Kind {
	case ShapeEdge:
		edge := box2d.NewB2EdgeShape()
		edge.Set(toB2(s.Vertices[0]), toB2(s.Vertices[1]))
		return edge
	case ShapeCircle:
		circle := box2d.NewB2CircleShape()
		circle.M_radius = s.Radius
		return circle
	default:
		poly := box2d.NewB2PolygonShape()
		vertices := make([]box2d.B2Vec2, len(s.Vertices))
		for i, v := range s.Vertices {
			vertices[i] = toB2(v)
		}
		poly.Set(vertices, len(vertices))
		return poly
	}
}

// CreateBody creates a body and attaches the given fixtures.
func (w *Box2DWorld) CreateBody(def BodyDef, fixtures ...FixtureDef) Body {
	bd := box2d.MakeB2BodyDef()
	bd.Type = uint8(def.Type)
	bd.Position = toB2(def.Position)
	bd.Angle = def.Angle
	bd.FixedRotation = def.FixedRotation
	bd.LinearDamping = def.LinearDamping
	bd.AngularDamping = def.AngularDamping

	body := &box2dBody{body: w.world.CreateBody(&bd)}
	for _, f := range fixtures {
		fd := box2d.MakeB2FixtureDef()
		fd.Shape = toB2Shape(f.Shape)
		fd.Density = f.Density
		fd.Friction = f.Friction
		fd.Restitution = f.Restitution
		fd.IsSensor = f.Sensor
		filter := box2d.MakeB2Filter()
		filter.CategoryBits = f.Filter.Category
		filter.MaskBits = f.Filter.Mask
		filter.GroupIndex = f.Filter.Group
		fd.Filter = filter
		body.body.CreateFixtureFromDef(&fd)
	}
	body.fixtures = fixtures
	body.body.SetUserData(body)
	return body
}

// DestroyBody removes a body and its fixtures. Joints attached to it are destroyed by the solver.
func (w *Box2DWorld) DestroyBody(b Body) {
	bb, ok := b.(*box2dBody)
	if !ok || bb.body == nil {
		return
	}
	w.world.DestroyBody(bb.body)
	bb.body = nil
}

// CreateRevoluteJoint creates a hinge between two bodies.
func (w *Box2DWorld) CreateRevoluteJoint(def RevoluteJointDef) Joint {
	rjd := box2d.MakeB2RevoluteJointDef()
	rjd.BodyA = def.BodyA.(*box2dBody).body
	rjd.BodyB = def.BodyB.(*box2dBody).body
	rjd.LocalAnchorA = toB2(def.LocalAnchorA)
	rjd.LocalAnchorB = toB2(def.LocalAnchorB)
	rjd.EnableMotor = def.EnableMotor
	rjd.EnableLimit = def.EnableLimit
	rjd.LowerAngle = def.LowerAngle
	rjd.UpperAngle = def.UpperAngle
	rjd.MaxMotorTorque = def.MaxMotorTorque
	rjd.MotorSpeed = def.MotorSpeed

	joint := w.world.CreateJoint(&rjd).(*box2d.B2RevoluteJoint)
	return &box2dJoint{joint: joint, a: def.BodyA, b: def.BodyB}
}

// DestroyJoint removes a joint.
func (w *Box2DWorld) DestroyJoint(j Joint) {
	bj, ok := j.(*box2dJoint)
	if !ok || bj.joint == nil {
		return
	}
	w.world.DestroyJoint(bj.joint)
	bj.joint = nil
}

// Step advances the world by dt seconds.
func (w *Box2DWorld) Step(dt float64, velocityIterations, positionIterations int) {
	w.world.Step(dt, velocityIterations, positionIterations)
}

// RayCast reports every fixture crossing the segment p1-p2 to fn.
func (w *Box2DWorld) RayCast(p1, p2 Vec2, fn RayCastFunc) {
	w.world.RayCast(func(fixture *box2d.B2Fixture, point, normal box2d.B2Vec2, fraction float64) float64 {
		body, _ := fixture.GetBody().GetUserData().(*box2dBody)
		return fn(RayHit{
			Body:     body,
			Point:    fromB2(point),
			Normal:   fromB2(normal),
			Fraction: fraction,
			Sensor:   fixture.IsSensor(),
		})
	}, toB2(p1), toB2(p2))
}

// SetContactListener installs l, or removes the current listener when l is nil.
func (w *Box2DWorld) SetContactListener(l ContactListener) {
	w.listener = l
	if l == nil {
		w.world.SetContactListener(nil)
		return
	}
	w.world.SetContactListener(&box2dContactAdapter{listener: l})
}

// Gravity returns the world gravity.
func (w *Box2DWorld) Gravity() Vec2 {
	return fromB2(w.world.GetGravity())
}

type box2dContactAdapter struct {
	listener ContactListener
}

func contactBodies(contact box2d.B2ContactInterface) (Body, Body, bool) {
	a, okA := contact.GetFixtureA().GetBody().GetUserData().(*box2dBody)
	b, okB := contact.GetFixtureB().GetBody().GetUserData().(*box2dBody)
	return a, b, okA && okB
}

func (c *box2dContactAdapter) BeginContact(contact box2d.B2ContactInterface) {
	if a, b, ok := contactBodies(contact); ok {
		c.listener.BeginContact(a, b)
	}
}

func (c *box2dContactAdapter) EndContact(contact box2d.B2ContactInterface) {
	if a, b, ok := contactBodies(contact); ok {
		c.listener.EndContact(a, b)
	}
}

func (c *box2dContactAdapter) PreSolve(contact box2d.B2ContactInterface, oldManifold box2d.B2Manifold) {
}

func (c *box2dContactAdapter) PostSolve(contact box2d.B2ContactInterface, impulse *box2d.B2ContactImpulse) {
}

func (b *box2dBody) Position() Vec2 { return fromB2(b.body.GetPosition()) }
func (b *box2dBody) Angle() float64 { return b.body.GetAngle() }
func (b *box2dBody) LinearVelocity() Vec2 { return fromB2(b.body.GetLinearVelocity()) }
func (b *box2dBody) AngularVelocity() float64 { return b.body.GetAngularVelocity() }
func (b *box2dBody) Mass() float64 { return b.body.GetMass() }
func (b *box2dBody) Type() BodyType { return BodyType(b.body.GetType()) }
func (b *box2dBody) Fixtures() []FixtureDef { return b.fixtures }
func (b *box2dBody) UserData() *UserData { return b.data }
func (b *box2dBody) SetUserData(d *UserData) { b.data = d }

func (b *box2dBody) SetTransform(position Vec2, angle float64) {
	b.body.SetTransform(toB2(position), angle)
}

func (b *box2dBody) SetLinearVelocity(v Vec2) {
	b.body.SetLinearVelocity(toB2(v))
}

func (b *box2dBody) ApplyForceToCenter(force Vec2) {
	b.body.ApplyForceToCenter(toB2(force), true)
}

func (j *box2dJoint) Angle() float64 { return j.joint.GetJointAngle() }
func (j *box2dJoint) Speed() float64 { return j.joint.GetJointSpeed() }
func (j *box2dJoint) BodyA() Body { return j.a }
func (j *box2dJoint) BodyB() Body { return j.b }

func (j *box2dJoint) SetMotorSpeed(speed float64) {
	j.joint.SetMotorSpeed(speed)
}

func (j *box2dJoint) SetMaxMotorTorque(torque float64) {
	j.joint.SetMaxMotorTorque(torque)
}

var _ World = (*Box2DWorld)(nil)
