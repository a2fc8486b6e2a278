package physics

import (
	"github.com/chewxy/math32"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	defaultTimeScale   = 0.5
	defaultMaxDt       = float32(1.0 / 120.0)
	defaultMaxSubsteps = 8
	// restingSpeed is the approach speed under which contacts stop bouncing.
	restingSpeed = float32(0.05)
	ballDensity  = float32(1.0)
)

// Config tunes the world integrator.
type Config struct {
	Gravity     mgl32.Vec3
	TimeScale   float32
	MaxDt       float32
	MaxSubsteps int
}

// DefaultConfig returns earth gravity and a half-speed variable timestep
// capped at 1/120 s.
func DefaultConfig() Config {
	return Config{
		Gravity:     mgl32.Vec3{0, -9.81, 0},
		TimeScale:   defaultTimeScale,
		MaxDt:       defaultMaxDt,
		MaxSubsteps: defaultMaxSubsteps,
	}
}

type body struct {
	id             EntityID
	name           string
	kind           BodyKind
	pose           Transform
	prevPose       Transform
	vel            Velocity
	gravityScale   float32
	linearDamping  float32
	angularDamping float32
	collider       Collider
	mass           float32
}

type pairKey struct {
	a EntityID
	b EntityID
}

func makePair(a, b EntityID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// World owns every body and the pending event streams. It is not safe for
// concurrent use; the simulation loop is its only caller.
type World struct {
	cfg        Config
	bodies     *orderedmap.OrderedMap[EntityID, *body]
	nextID     EntityID
	touching   *orderedmap.OrderedMap[pairKey, struct{}]
	collisions []CollisionEvent
	forces     []ContactForceEvent
	steps      uint64
}

var _ Backend = (*World)(nil)

// NewWorld constructs an empty world. Zero config fields fall back to defaults.
func NewWorld(cfg Config) *World {
	defaults := DefaultConfig()
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = defaults.TimeScale
	}
	if cfg.MaxDt <= 0 {
		cfg.MaxDt = defaults.MaxDt
	}
	if cfg.MaxSubsteps <= 0 {
		cfg.MaxSubsteps = defaults.MaxSubsteps
	}
	return &World{
		cfg:      cfg,
		bodies:   orderedmap.NewOrderedMap[EntityID, *body](),
		touching: orderedmap.NewOrderedMap[pairKey, struct{}](),
	}
}

// Config reports the active configuration.
func (w *World) Config() Config {
	return w.cfg
}

// Spawn adds a body and returns its identifier.
func (w *World) Spawn(desc BodyDesc) EntityID {
	w.nextID++
	pose := desc.Transform
	if pose.Rotation == (mgl32.Quat{}) {
		pose.Rotation = mgl32.QuatIdent()
	}
	pose.Rotation = pose.Rotation.Normalize()
	b := &body{
		id:             w.nextID,
		name:           desc.Name,
		kind:           desc.Kind,
		pose:           pose,
		prevPose:       pose,
		vel:            desc.Velocity,
		gravityScale:   desc.GravityScale,
		linearDamping:  desc.LinearDamping,
		angularDamping: desc.AngularDamping,
		collider:       desc.Collider,
		mass:           colliderMass(desc.Collider),
	}
	w.bodies.Set(b.id, b)
	return b.id
}

// Despawn removes a body. Pairs it was part of report CollisionStopped with
// Removed set.
func (w *World) Despawn(id EntityID) bool {
	if _, ok := w.bodies.Get(id); !ok {
		return false
	}
	w.bodies.Delete(id)
	for _, pair := range w.touching.Keys() {
		if pair.a != id && pair.b != id {
			continue
		}
		w.touching.Delete(pair)
		w.collisions = append(w.collisions, CollisionEvent{Kind: CollisionStopped, A: pair.a, B: pair.b, Removed: true})
	}
	return true
}

// Len reports the number of live bodies.
func (w *World) Len() int {
	return w.bodies.Len()
}

// Steps reports how many non-empty steps have run.
func (w *World) Steps() uint64 {
	return w.steps
}

// Name returns the spawn name of a body.
func (w *World) Name(id EntityID) (string, bool) {
	b, ok := w.bodies.Get(id)
	if !ok {
		return "", false
	}
	return b.name, true
}

func (w *World) Exists(id EntityID) bool {
	_, ok := w.bodies.Get(id)
	return ok
}

func (w *World) Transform(id EntityID) (Transform, bool) {
	b, ok := w.bodies.Get(id)
	if !ok {
		return Transform{}, false
	}
	return b.pose, true
}

// SetTransform poses a body. Kinematic bodies keep their previous pose so the
// next step can derive their velocity from the move.
func (w *World) SetTransform(id EntityID, t Transform) bool {
	b, ok := w.bodies.Get(id)
	if !ok {
		return false
	}
	if t.Rotation == (mgl32.Quat{}) {
		t.Rotation = mgl32.QuatIdent()
	}
	t.Rotation = t.Rotation.Normalize()
	b.pose = t
	if b.kind != BodyKinematicPositionBased {
		b.prevPose = t
	}
	return true
}

func (w *World) Velocity(id EntityID) (Velocity, bool) {
	b, ok := w.bodies.Get(id)
	if !ok {
		return Velocity{}, false
	}
	return b.vel, true
}

func (w *World) SetVelocity(id EntityID, v Velocity) bool {
	b, ok := w.bodies.Get(id)
	if !ok {
		return false
	}
	b.vel = v
	return true
}

func (w *World) GravityScale(id EntityID) (float32, bool) {
	b, ok := w.bodies.Get(id)
	if !ok {
		return 0, false
	}
	return b.gravityScale, true
}

func (w *World) SetGravityScale(id EntityID, scale float32) bool {
	b, ok := w.bodies.Get(id)
	if !ok {
		return false
	}
	b.gravityScale = scale
	return true
}

func (w *World) SetBodyKind(id EntityID, kind BodyKind) bool {
	b, ok := w.bodies.Get(id)
	if !ok {
		return false
	}
	b.kind = kind
	b.prevPose = b.pose
	if kind == BodyFixed {
		b.vel = Velocity{}
	}
	return true
}

// DrainCollisionEvents returns pending collision events in emission order.
func (w *World) DrainCollisionEvents() []CollisionEvent {
	events := w.collisions
	w.collisions = nil
	return events
}

// DrainContactForceEvents returns pending contact-force events in emission order.
func (w *World) DrainContactForceEvents() []ContactForceEvent {
	events := w.forces
	w.forces = nil
	return events
}

// StepDelta converts a frame delta into the integration step.
func (w *World) StepDelta(frameDt float32) float32 {
	return min(frameDt*w.cfg.TimeScale, w.cfg.MaxDt)
}

// Step advances the world by one frame and queues the resulting events. It
// returns the integration step actually used.
func (w *World) Step(frameDt float32) float32 {
	dt := w.StepDelta(frameDt)
	if dt <= 0 {
		return 0
	}
	w.steps++

	for el := w.bodies.Front(); el != nil; el = el.Next() {
		b := el.Value
		if b.kind == BodyKinematicPositionBased {
			b.vel = kinematicVelocity(b.prevPose, b.pose, dt)
			b.prevPose = b.pose
		}
	}

	substeps := w.substeps(dt)
	h := dt / float32(substeps)
	current := orderedmap.NewOrderedMap[pairKey, struct{}]()
	impulses := orderedmap.NewOrderedMap[pairKey, mgl32.Vec3]()

	for i := 0; i < substeps; i++ {
		w.integrate(h)
		w.collide(current, impulses)
	}

	for el := impulses.Front(); el != nil; el = el.Next() {
		force := el.Value.Mul(1 / dt)
		w.forces = append(w.forces, ContactForceEvent{
			A:                   el.Key.a,
			B:                   el.Key.b,
			TotalForce:          force,
			TotalForceMagnitude: force.Len(),
		})
	}
	for el := current.Front(); el != nil; el = el.Next() {
		if _, ok := w.touching.Get(el.Key); !ok {
			w.collisions = append(w.collisions, CollisionEvent{Kind: CollisionStarted, A: el.Key.a, B: el.Key.b})
		}
	}
	for el := w.touching.Front(); el != nil; el = el.Next() {
		if _, ok := current.Get(el.Key); !ok {
			w.collisions = append(w.collisions, CollisionEvent{Kind: CollisionStopped, A: el.Key.a, B: el.Key.b})
		}
	}
	w.touching = current
	return dt
}

// substeps picks enough sub-steps that no ball travels more than half its
// radius per sub-step.
func (w *World) substeps(dt float32) int {
	n := 1
	for el := w.bodies.Front(); el != nil; el = el.Next() {
		b := el.Value
		if b.kind != BodyDynamic || b.collider.Shape != ShapeBall || b.collider.Radius <= 0 {
			continue
		}
		travel := b.vel.Linear.Len() * dt
		needed := int(math32.Ceil(travel / (b.collider.Radius * 0.5)))
		n = max(n, needed)
	}
	return min(n, w.cfg.MaxSubsteps)
}

func (w *World) integrate(h float32) {
	for el := w.bodies.Front(); el != nil; el = el.Next() {
		b := el.Value
		if b.kind != BodyDynamic {
			continue
		}
		b.vel.Linear = b.vel.Linear.Add(w.cfg.Gravity.Mul(b.gravityScale * h))
		b.vel.Linear = b.vel.Linear.Mul(1 / (1 + h*b.linearDamping))
		b.vel.Angular = b.vel.Angular.Mul(1 / (1 + h*b.angularDamping))
		b.pose.Translation = b.pose.Translation.Add(b.vel.Linear.Mul(h))
		b.pose.Rotation = integrateRotation(b.pose.Rotation, b.vel.Angular, h)
		b.prevPose = b.pose
	}
}

func (w *World) collide(current *orderedmap.OrderedMap[pairKey, struct{}], impulses *orderedmap.OrderedMap[pairKey, mgl32.Vec3]) {
	for el := w.bodies.Front(); el != nil; el = el.Next() {
		ball := el.Value
		if ball.kind != BodyDynamic || ball.collider.Shape != ShapeBall {
			continue
		}
		for other := w.bodies.Front(); other != nil; other = other.Next() {
			box := other.Value
			if box.id == ball.id || box.collider.Shape != ShapeCuboid || box.kind == BodyDynamic {
				continue
			}
			normal, depth, ok := sphereCuboid(ball.pose.Translation, ball.collider.Radius, box.pose, box.collider.HalfExtents)
			if !ok {
				continue
			}
			pair := makePair(ball.id, box.id)
			current.Set(pair, struct{}{})
			dv := resolveContact(ball, box, normal, depth)
			if dv.Len() == 0 {
				continue
			}
			acc, _ := impulses.Get(pair)
			impulses.Set(pair, acc.Add(dv.Mul(ball.mass)))
		}
	}
}

// resolveContact pushes the ball out of the box and applies the restitution
// and Coulomb friction impulse. It returns the velocity change of the ball.
func resolveContact(ball, box *body, normal mgl32.Vec3, depth float32) mgl32.Vec3 {
	ball.pose.Translation = ball.pose.Translation.Add(normal.Mul(depth))
	ball.prevPose = ball.pose

	relative := ball.vel.Linear.Sub(box.vel.Linear)
	approach := relative.Dot(normal)
	if approach >= 0 {
		return mgl32.Vec3{}
	}
	restitution := Combine(ball.collider.Restitution, ball.collider.RestitutionCombine, box.collider.Restitution, box.collider.RestitutionCombine)
	if -approach < restingSpeed {
		restitution = 0
	}
	friction := Combine(ball.collider.Friction, ball.collider.FrictionCombine, box.collider.Friction, box.collider.FrictionCombine)

	normalChange := -(1 + restitution) * approach
	dv := normal.Mul(normalChange)
	tangent := relative.Sub(normal.Mul(approach))
	if tangentLen := tangent.Len(); tangentLen > 1e-6 {
		slip := min(friction*normalChange, tangentLen)
		dv = dv.Sub(tangent.Mul(slip / tangentLen))
	}
	ball.vel.Linear = ball.vel.Linear.Add(dv)
	return dv
}

// sphereCuboid tests a sphere against an oriented box. The normal points from
// the box towards the sphere centre.
func sphereCuboid(center mgl32.Vec3, radius float32, box Transform, half mgl32.Vec3) (mgl32.Vec3, float32, bool) {
	if !IsFinite(center) || !finiteTransform(box) {
		return mgl32.Vec3{}, 0, false
	}
	local := box.Rotation.Conjugate().Rotate(center.Sub(box.Translation))
	var closest mgl32.Vec3
	for i := 0; i < 3; i++ {
		closest[i] = mgl32.Clamp(local[i], -half[i], half[i])
	}
	diff := local.Sub(closest)
	distSq := diff.Dot(diff)
	if distSq > radius*radius {
		return mgl32.Vec3{}, 0, false
	}

	var normal mgl32.Vec3
	var depth float32
	if distSq > 1e-12 {
		dist := math32.Sqrt(distSq)
		normal = diff.Mul(1 / dist)
		depth = radius - dist
	} else {
		// Centre is inside the box: leave through the nearest face.
		axis := 0
		best := float32(math32.MaxFloat32)
		for i := 0; i < 3; i++ {
			if gap := half[i] - math32.Abs(local[i]); gap < best {
				best = gap
				axis = i
			}
		}
		sign := float32(1)
		if local[axis] < 0 {
			sign = -1
		}
		normal[axis] = sign
		depth = radius + best
	}
	return box.Rotation.Rotate(normal), depth, true
}

func kinematicVelocity(from, to Transform, dt float32) Velocity {
	linear := to.Translation.Sub(from.Translation).Mul(1 / dt)
	delta := to.Rotation.Mul(from.Rotation.Conjugate()).Normalize()
	if delta.W < 0 {
		delta = delta.Scale(-1)
	}
	angle := 2 * math32.Acos(mgl32.Clamp(delta.W, -1, 1))
	sinHalf := math32.Sqrt(max(0, 1-delta.W*delta.W))
	var angular mgl32.Vec3
	if sinHalf > 1e-6 {
		angular = delta.V.Mul(angle / (sinHalf * dt))
	}
	if !IsFinite(linear) || !IsFinite(angular) {
		return Velocity{}
	}
	return Velocity{Linear: linear, Angular: angular}
}

// IsFinite reports whether every component of v is neither NaN nor infinite.
func IsFinite(v mgl32.Vec3) bool {
	for _, c := range v {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func finiteTransform(t Transform) bool {
	q := t.Rotation
	return IsFinite(t.Translation) && IsFinite(q.V) && !math32.IsNaN(q.W) && !math32.IsInf(q.W, 0)
}

func integrateRotation(q mgl32.Quat, angular mgl32.Vec3, h float32) mgl32.Quat {
	if angular.Len() == 0 {
		return q
	}
	spin := mgl32.Quat{W: 0, V: angular}.Mul(q).Scale(0.5 * h)
	return q.Add(spin).Normalize()
}

func colliderMass(c Collider) float32 {
	switch c.Shape {
	case ShapeBall:
		return ballDensity * 4.0 / 3.0 * math32.Pi * c.Radius * c.Radius * c.Radius
	case ShapeCuboid:
		return ballDensity * 8 * c.HalfExtents[0] * c.HalfExtents[1] * c.HalfExtents[2]
	default:
		return 0
	}
}
