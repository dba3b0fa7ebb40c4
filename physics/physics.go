// Package physics defines the rigid-body capabilities the environment needs from a solver:
// body and fixture creation per shape kind, revolute joints, fixed-tick stepping, ray casting
// and contact notifications. The environment only talks to these interfaces.
package physics

import "math"

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// V is shorthand for Vec2{x, y}.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Len returns the euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Rotate returns v rotated by angle radians.
func (v Vec2) Rotate(angle float64) Vec2 {
	s, c := math.Sincos(angle)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// BodyType selects how the solver moves a body.
type BodyType uint8

const (
	Static BodyType = iota
	Kinematic
	Dynamic
)

// ShapeKind enumerates supported fixture shapes.
type ShapeKind uint8

const (
	ShapePolygon ShapeKind = iota
	ShapeEdge
	ShapeCircle
)

// Shape is a fixture shape in body-local coordinates.
type Shape struct {
	Kind     ShapeKind
	Vertices []Vec2 // polygon vertices or the two edge endpoints
	Radius   float64
}

// Polygon returns a convex polygon shape.
func Polygon(vertices ...Vec2) Shape {
	return Shape{Kind: ShapePolygon, Vertices: vertices}
}

// Box returns an axis-aligned box with the given half extents.
func Box(hw, hh float64) Shape {
	return Polygon(V(-hw, -hh), V(hw, -hh), V(hw, hh), V(-hw, hh))
}

// Edge returns a line segment shape.
func Edge(a, b Vec2) Shape {
	return Shape{Kind: ShapeEdge, Vertices: []Vec2{a, b}}
}

// Circle returns a circle centered on the body origin.
func Circle(radius float64) Shape {
	return Shape{Kind: ShapeCircle, Radius: radius}
}

// Filter controls which fixtures collide.
type Filter struct {
	Category uint16
	Mask     uint16
	Group    int16
}

// Collision categories used by the environment.
const (
	CategoryTerrain uint16 = 0x1
	CategoryAgent   uint16 = 0x20
	CategoryAll     uint16 = 0xFFFF
)

// TerrainFilter collides with everything.
var TerrainFilter = Filter{Category: CategoryTerrain, Mask: CategoryAll}

// AgentFilter collides with terrain only, so agents pass through each other.
var AgentFilter = Filter{Category: CategoryAgent, Mask: CategoryTerrain}

// FixtureDef describes one fixture attached to a body.
type FixtureDef struct {
	Shape       Shape
	Density     float64
	Friction    float64
	Restitution float64
	Filter      Filter
	Sensor      bool
}

// BodyDef describes a body to create.
type BodyDef struct {
	Type           BodyType
	Position       Vec2
	Angle          float64
	FixedRotation  bool
	LinearDamping  float64
	AngularDamping float64
}

// Body is a rigid body owned by a World.
type Body interface {
	Position() Vec2
	Angle() float64
	LinearVelocity() Vec2
	AngularVelocity() float64
	SetTransform(position Vec2, angle float64)
	SetLinearVelocity(v Vec2)
	ApplyForceToCenter(force Vec2)
	Mass() float64
	Type() BodyType
	Fixtures() []FixtureDef
	UserData() *UserData
	SetUserData(*UserData)
}

// RevoluteJointDef describes a hinge between two bodies.
type RevoluteJointDef struct {
	BodyA, BodyB   Body
	LocalAnchorA   Vec2
	LocalAnchorB   Vec2
	EnableMotor    bool
	EnableLimit    bool
	LowerAngle     float64
	UpperAngle     float64
	MaxMotorTorque float64
	MotorSpeed     float64
}

// Joint is a revolute joint, optionally motorized.
type Joint interface {
	Angle() float64
	Speed() float64
	SetMotorSpeed(speed float64)
	SetMaxMotorTorque(torque float64)
	BodyA() Body
	BodyB() Body
}

// RayHit is a single fixture intersection reported during a ray cast.
type RayHit struct {
	Body     Body
	Point    Vec2
	Normal   Vec2
	Fraction float64
	Sensor   bool
}

// RayCastFunc receives every hit along a ray. Its return value clips the ray:
// return hit.Fraction to keep only closer hits, -1 to ignore the fixture,
// 0 to stop and 1 to continue unclipped.
type RayCastFunc func(hit RayHit) float64

// ContactListener is notified when fixtures of two bodies start or stop touching.
type ContactListener interface {
	BeginContact(a, b Body)
	EndContact(a, b Body)
}

// World owns bodies and joints and advances them in fixed ticks.
type World interface {
	CreateBody(def BodyDef, fixtures ...FixtureDef) Body
	DestroyBody(b Body)
	CreateRevoluteJoint(def RevoluteJointDef) Joint
	DestroyJoint(j Joint)
	Step(dt float64, velocityIterations, positionIterations int)
	RayCast(p1, p2 Vec2, fn RayCastFunc)
	SetContactListener(l ContactListener)
	Gravity() Vec2
}
