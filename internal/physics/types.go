// Package physics is a small rigid-body world sized for a table tennis scene.
//
// The game systems only talk to it through Backend: per-body pose, velocity,
// gravity scale and body kind, plus the collision and contact-force event
// streams produced by Step.
package physics

import "github.com/go-gl/mathgl/mgl32"

// EntityID identifies a body in the world. Zero is never assigned.
type EntityID uint64

// BodyKind controls how Step treats a body.
type BodyKind uint8

const (
	// BodyDynamic bodies are integrated under gravity and resolved against contacts.
	BodyDynamic BodyKind = iota
	// BodyFixed bodies never move.
	BodyFixed
	// BodyKinematicPositionBased bodies are posed by callers; their velocity is
	// derived from the pose change between steps.
	BodyKinematicPositionBased
)

func (k BodyKind) String() string {
	switch k {
	case BodyDynamic:
		return "dynamic"
	case BodyFixed:
		return "fixed"
	case BodyKinematicPositionBased:
		return "kinematic_position_based"
	default:
		return "unknown"
	}
}

// ShapeKind selects the collider geometry.
type ShapeKind uint8

const (
	ShapeBall ShapeKind = iota
	ShapeCuboid
)

// CombineRule merges the material coefficients of two touching colliders.
type CombineRule uint8

const (
	CombineAverage CombineRule = iota
	CombineMin
	CombineMultiply
	CombineMax
)

// Combine applies the rule with the higher precedence of the two.
func Combine(a float32, ruleA CombineRule, b float32, ruleB CombineRule) float32 {
	rule := max(ruleA, ruleB)
	switch rule {
	case CombineMin:
		return min(a, b)
	case CombineMultiply:
		return a * b
	case CombineMax:
		return max(a, b)
	default:
		return (a + b) / 2
	}
}

// Collider describes the shape and material of a body.
type Collider struct {
	Shape              ShapeKind
	Radius             float32
	HalfExtents        mgl32.Vec3
	Restitution        float32
	RestitutionCombine CombineRule
	Friction           float32
	FrictionCombine    CombineRule
}

// Ball returns a sphere collider with default material.
func Ball(radius float32) Collider {
	return Collider{Shape: ShapeBall, Radius: radius, Friction: 0.5}
}

// Cuboid returns a box collider with default material.
func Cuboid(hx, hy, hz float32) Collider {
	return Collider{Shape: ShapeCuboid, HalfExtents: mgl32.Vec3{hx, hy, hz}, Friction: 0.5}
}

// Transform is a body pose.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
}

// TransformFromTranslation returns a pose with identity rotation.
func TransformFromTranslation(x, y, z float32) Transform {
	return Transform{Translation: mgl32.Vec3{x, y, z}, Rotation: mgl32.QuatIdent()}
}

// Velocity holds linear and angular velocity.
type Velocity struct {
	Linear  mgl32.Vec3
	Angular mgl32.Vec3
}

// BodyDesc is the spawn description of a body.
type BodyDesc struct {
	Name           string
	Kind           BodyKind
	Transform      Transform
	Velocity       Velocity
	GravityScale   float32
	LinearDamping  float32
	AngularDamping float32
	Collider       Collider
}

// CollisionEventKind distinguishes contact start from contact end.
type CollisionEventKind uint8

const (
	CollisionStarted CollisionEventKind = iota
	CollisionStopped
)

func (k CollisionEventKind) String() string {
	if k == CollisionStarted {
		return "started"
	}
	return "stopped"
}

// CollisionEvent reports a change in touching state between two bodies.
// Removed is set when the pair stopped touching because a body was despawned.
type CollisionEvent struct {
	Kind    CollisionEventKind
	A       EntityID
	B       EntityID
	Removed bool
}

// ContactForceEvent reports the force exchanged by a touching pair during a
// step. TotalForce is the force applied to the dynamic body of the pair.
type ContactForceEvent struct {
	A                   EntityID
	B                   EntityID
	TotalForce          mgl32.Vec3
	TotalForceMagnitude float32
}

// Backend is the mutation and event API the game systems consume.
type Backend interface {
	Exists(id EntityID) bool
	Transform(id EntityID) (Transform, bool)
	SetTransform(id EntityID, t Transform) bool
	Velocity(id EntityID) (Velocity, bool)
	SetVelocity(id EntityID, v Velocity) bool
	GravityScale(id EntityID) (float32, bool)
	SetGravityScale(id EntityID, scale float32) bool
	SetBodyKind(id EntityID, kind BodyKind) bool
	DrainCollisionEvents() []CollisionEvent
	DrainContactForceEvents() []ContactForceEvent
}
