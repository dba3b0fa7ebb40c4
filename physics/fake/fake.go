// Package fake implements a deterministic, solver-free physics.World.
//
// Dynamic bodies integrate gravity and applied forces with explicit Euler steps and never
// collide; contacts are reported when a dynamic body's bounding box starts or stops overlapping
// a static one. Ray casts intersect the exact fixture geometry. It is meant for tests and dry
// runs where solver behavior is irrelevant.
package fake

import (
	"math"
	"sort"

	"github.com/accelagent/parkour/physics"
)

// World is an in-memory physics.World.
type World struct {
	gravity  physics.Vec2
	bodies   []*Body
	joints   []*Joint
	listener physics.ContactListener
	touching map[[2]*Body]bool

	// Steps counts calls to Step.
	Steps int
}

// New creates a fake world with the given gravity.
func New(gravity physics.Vec2) *World {
	return &World{
		gravity:  gravity,
		touching: make(map[[2]*Body]bool),
	}
}

// Body is a fake rigid body.
type Body struct {
	def      physics.BodyDef
	fixtures []physics.FixtureDef
	data     *physics.UserData
	pos      physics.Vec2
	angle    float64
	vel      physics.Vec2
	angVel   float64
	force    physics.Vec2
	mass     float64
	alive    bool
}

// Joint is a fake revolute joint. Its motor drives the relative angle directly.
type Joint struct {
	def       physics.RevoluteJointDef
	reference float64
	speed     float64
	maxTorque float64
	alive     bool
}

// CreateBody adds a body.
func (w *World) CreateBody(def physics.BodyDef, fixtures ...physics.FixtureDef) physics.Body {
	b := &Body{
		def:      def,
		fixtures: fixtures,
		pos:      def.Position,
		angle:    def.Angle,
		alive:    true,
	}
	for _, f := range fixtures {
		b.mass += f.Density * shapeArea(f.Shape)
	}
	if b.mass <= 0 {
		b.mass = 1
	}
	w.bodies = append(w.bodies, b)
	return b
}

// DestroyBody removes a body and any joint attached to it.
func (w *World) DestroyBody(pb physics.Body) {
	b, ok := pb.(*Body)
	if !ok || !b.alive {
		return
	}
	b.alive = false
	for i, other := range w.bodies {
		if other == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	kept := w.joints[:0]
	for _, j := range w.joints {
		if j.def.BodyA == pb || j.def.BodyB == pb {
			j.alive = false
			continue
		}
		kept = append(kept, j)
	}
	w.joints = kept
	for pair := range w.touching {
		if pair[0] == b || pair[1] == b {
			delete(w.touching, pair)
		}
	}
}

// CreateRevoluteJoint adds a joint.
func (w *World) CreateRevoluteJoint(def physics.RevoluteJointDef) physics.Joint {
	j := &Joint{
		def:       def,
		reference: def.BodyB.Angle() - def.BodyA.Angle(),
		speed:     def.MotorSpeed,
		maxTorque: def.MaxMotorTorque,
		alive:     true,
	}
	w.joints = append(w.joints, j)
	return j
}

// DestroyJoint removes a joint.
func (w *World) DestroyJoint(pj physics.Joint) {
	j, ok := pj.(*Joint)
	if !ok || !j.alive {
		return
	}
	j.alive = false
	for i, other := range w.joints {
		if other == j {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
			return
		}
	}
}

// Step integrates dynamic bodies and emits contact transitions.
func (w *World) Step(dt float64, velocityIterations, positionIterations int) {
	w.Steps++
	for _, j := range w.joints {
		if !j.def.EnableMotor || j.maxTorque == 0 {
			continue
		}
		if b, ok := j.def.BodyB.(*Body); ok && b.def.Type == physics.Dynamic {
			b.angle += j.speed * dt
			if j.def.EnableLimit {
				rel := b.angle - j.def.BodyA.Angle() - j.reference
				rel = math.Max(j.def.LowerAngle, math.Min(j.def.UpperAngle, rel))
				b.angle = j.def.BodyA.Angle() + j.reference + rel
			}
		}
	}
	for _, b := range w.bodies {
		if b.def.Type != physics.Dynamic {
			continue
		}
		acc := w.gravity.Add(b.force.Scale(1 / b.mass))
		b.vel = b.vel.Add(acc.Scale(dt))
		if b.def.LinearDamping > 0 {
			b.vel = b.vel.Scale(1 / (1 + dt*b.def.LinearDamping))
		}
		b.pos = b.pos.Add(b.vel.Scale(dt))
		if !b.def.FixedRotation {
			b.angle += b.angVel * dt
		}
		b.force = physics.Vec2{}
	}
	w.updateContacts()
}

func (w *World) updateContacts() {
	for _, a := range w.bodies {
		if a.def.Type != physics.Dynamic {
			continue
		}
		amin, amax := a.bounds()
		for _, b := range w.bodies {
			if b.def.Type != physics.Static {
				continue
			}
			bmin, bmax := b.bounds()
			overlap := amin.X <= bmax.X && amax.X >= bmin.X && amin.Y <= bmax.Y && amax.Y >= bmin.Y
			pair := [2]*Body{a, b}
			was := w.touching[pair]
			switch {
			case overlap && !was:
				w.touching[pair] = true
				if w.listener != nil {
					w.listener.BeginContact(a, b)
				}
			case !overlap && was:
				delete(w.touching, pair)
				if w.listener != nil {
					w.listener.EndContact(a, b)
				}
			}
		}
	}
}

// RayCast reports fixture intersections in order of increasing fraction.
func (w *World) RayCast(p1, p2 physics.Vec2, fn physics.RayCastFunc) {
	var hits []physics.RayHit
	for _, b := range w.bodies {
		for _, f := range b.fixtures {
			if frac, normal, ok := b.intersect(f.Shape, p1, p2); ok {
				point := p1.Add(p2.Sub(p1).Scale(frac))
				hits = append(hits, physics.RayHit{Body: b, Point: point, Normal: normal, Fraction: frac, Sensor: f.Sensor})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Fraction < hits[j].Fraction })

	maxFraction := 1.0
	for _, h := range hits {
		if h.Fraction > maxFraction {
			break
		}
		r := fn(h)
		switch {
		case r == 0:
			return
		case r < 0:
			continue
		default:
			maxFraction = r
		}
	}
}

// SetContactListener installs the contact listener.
func (w *World) SetContactListener(l physics.ContactListener) {
	w.listener = l
}

// Gravity returns the world gravity.
func (w *World) Gravity() physics.Vec2 {
	return w.gravity
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// JointCount returns the number of live joints.
func (w *World) JointCount() int {
	return len(w.joints)
}

// Bodies returns the live bodies.
func (w *World) Bodies() []physics.Body {
	out := make([]physics.Body, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = b
	}
	return out
}

func (b *Body) Position() physics.Vec2       { return b.pos }
func (b *Body) Angle() float64               { return b.angle }
func (b *Body) LinearVelocity() physics.Vec2 { return b.vel }
func (b *Body) AngularVelocity() float64     { return b.angVel }
func (b *Body) Mass() float64                { return b.mass }
func (b *Body) Type() physics.BodyType       { return b.def.Type }
func (b *Body) Fixtures() []physics.FixtureDef  { return b.fixtures }
func (b *Body) UserData() *physics.UserData     { return b.data }
func (b *Body) SetUserData(d *physics.UserData) { b.data = d }

// Alive reports whether the body has not been destroyed.
func (b *Body) Alive() bool { return b.alive }

func (b *Body) SetTransform(position physics.Vec2, angle float64) {
	b.pos = position
	b.angle = angle
}

func (b *Body) SetLinearVelocity(v physics.Vec2) {
	b.vel = v
}

// SetAngularVelocity sets the angular velocity.
func (b *Body) SetAngularVelocity(w float64) {
	b.angVel = w
}

func (b *Body) ApplyForceToCenter(force physics.Vec2) {
	b.force = b.force.Add(force)
}

func (b *Body) toWorld(v physics.Vec2) physics.Vec2 {
	return b.pos.Add(v.Rotate(b.angle))
}

func (b *Body) bounds() (physics.Vec2, physics.Vec2) {
	lo := physics.V(math.Inf(1), math.Inf(1))
	hi := physics.V(math.Inf(-1), math.Inf(-1))
	grow := func(p physics.Vec2) {
		lo = physics.V(math.Min(lo.X, p.X), math.Min(lo.Y, p.Y))
		hi = physics.V(math.Max(hi.X, p.X), math.Max(hi.Y, p.Y))
	}
	for _, f := range b.fixtures {
		if f.Shape.Kind == physics.ShapeCircle {
			grow(b.pos.Add(physics.V(-f.Shape.Radius, -f.Shape.Radius)))
			grow(b.pos.Add(physics.V(f.Shape.Radius, f.Shape.Radius)))
			continue
		}
		for _, v := range f.Shape.Vertices {
			grow(b.toWorld(v))
		}
	}
	if len(b.fixtures) == 0 {
		grow(b.pos)
	}
	return lo, hi
}

func (b *Body) intersect(s physics.Shape, p1, p2 physics.Vec2) (float64, physics.Vec2, bool) {
	switch s.Kind {
	case physics.ShapeCircle:
		return intersectCircle(b.pos, s.Radius, p1, p2)
	case physics.ShapeEdge:
		return intersectSegment(b.toWorld(s.Vertices[0]), b.toWorld(s.Vertices[1]), p1, p2)
	default:
		best, bestNormal, found := math.Inf(1), physics.Vec2{}, false
		n := len(s.Vertices)
		for i := 0; i < n; i++ {
			a := b.toWorld(s.Vertices[i])
			c := b.toWorld(s.Vertices[(i+1)%n])
			if frac, normal, ok := intersectSegment(a, c, p1, p2); ok && frac < best {
				best, bestNormal, found = frac, normal, true
			}
		}
		return best, bestNormal, found
	}
}

// intersectSegment returns the fraction along p1-p2 where it crosses a-b.
func intersectSegment(a, b, p1, p2 physics.Vec2) (float64, physics.Vec2, bool) {
	r := p2.Sub(p1)
	s := b.Sub(a)
	denom := r.X*s.Y - r.Y*s.X
	if denom == 0 {
		return 0, physics.Vec2{}, false
	}
	d := a.Sub(p1)
	t := (d.X*s.Y - d.Y*s.X) / denom
	u := (d.X*r.Y - d.Y*r.X) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, physics.Vec2{}, false
	}
	normal := physics.V(s.Y, -s.X)
	if l := normal.Len(); l > 0 {
		normal = normal.Scale(1 / l)
	}
	return t, normal, true
}

func intersectCircle(center physics.Vec2, radius float64, p1, p2 physics.Vec2) (float64, physics.Vec2, bool) {
	d := p2.Sub(p1)
	f := p1.Sub(center)
	a := d.X*d.X + d.Y*d.Y
	bb := 2 * (f.X*d.X + f.Y*d.Y)
	c := f.X*f.X + f.Y*f.Y - radius*radius
	disc := bb*bb - 4*a*c
	if a == 0 || disc < 0 {
		return 0, physics.Vec2{}, false
	}
	t := (-bb - math.Sqrt(disc)) / (2 * a)
	if t < 0 || t > 1 {
		return 0, physics.Vec2{}, false
	}
	hit := p1.Add(d.Scale(t))
	normal := hit.Sub(center).Scale(1 / radius)
	return t, normal, true
}

func shapeArea(s physics.Shape) float64 {
	switch s.Kind {
	case physics.ShapeCircle:
		return math.Pi * s.Radius * s.Radius
	case physics.ShapePolygon:
		area := 0.0
		n := len(s.Vertices)
		for i := 0; i < n; i++ {
			a, b := s.Vertices[i], s.Vertices[(i+1)%n]
			area += a.X*b.Y - b.X*a.Y
		}
		return math.Abs(area) / 2
	default:
		return 0
	}
}

func (j *Joint) Angle() float64 {
	return j.def.BodyB.Angle() - j.def.BodyA.Angle() - j.reference
}

func (j *Joint) Speed() float64 {
	if j.def.EnableMotor && j.maxTorque > 0 {
		return j.speed
	}
	return 0
}

func (j *Joint) SetMotorSpeed(speed float64)      { j.speed = speed }
func (j *Joint) SetMaxMotorTorque(torque float64) { j.maxTorque = torque }
func (j *Joint) BodyA() physics.Body              { return j.def.BodyA }
func (j *Joint) BodyB() physics.Body              { return j.def.BodyB }

var _ physics.World = (*World)(nil)
