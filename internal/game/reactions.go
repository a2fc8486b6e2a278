package game

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"remote-pong/internal/physics"
	"remote-pong/logging/lifecycle"
	"remote-pong/logging/simulation"
)

// ServeSpeed is the speed given to the ball by a paddle hit.
const ServeSpeed = float32(3.0)

// matchPair reports which body of a pair has role want and which has role
// other, testing both orderings.
func matchPair(scene *Scene, a, b physics.EntityID, want, other Role) (physics.EntityID, physics.EntityID, bool) {
	switch {
	case scene.Role(a) == want && scene.Role(b) == other:
		return a, b, true
	case scene.Role(b) == want && scene.Role(a) == other:
		return b, a, true
	default:
		return 0, 0, false
	}
}

// reactToCollisions consumes collision-start events. Paddle contact launches
// an idle ball; table contact counts a bounce.
func reactToCollisions(f *Frame) {
	for _, ev := range f.World.DrainCollisionEvents() {
		handleCollision(f, ev)
	}
}

func handleCollision(f *Frame, ev physics.CollisionEvent) {
	if ev.Kind != physics.CollisionStarted {
		return
	}
	if ball, _, ok := matchPair(f.Scene, ev.A, ev.B, RoleBall, RolePaddle); ok && !f.Session.Launched {
		f.Session.Launched = true
		f.Session.Bounces = 0
		lifecycle.BallLaunched(f.context(), f.publisher(), f.Tick, f.Scene.Ref(ball), ballPayload(f, ball, ""))
	}
	if ball, _, ok := matchPair(f.Scene, ev.A, ev.B, RoleBall, RoleTable); ok {
		f.Session.Bounces++
		lifecycle.TableBounce(f.context(), f.publisher(), f.Tick, f.Scene.Ref(ball), ballPayload(f, ball, ""))
	}
}

// reactToContactForces consumes contact-force events. A paddle hit overrides
// the ball velocity with the force direction at ServeSpeed.
func reactToContactForces(f *Frame) {
	for _, ev := range f.World.DrainContactForceEvents() {
		handleContactForce(f, ev)
	}
}

func handleContactForce(f *Frame, ev physics.ContactForceEvent) {
	if ball, _, ok := matchPair(f.Scene, ev.A, ev.B, RoleBall, RolePaddle); ok {
		direction := normalizeOrZero(ev.TotalForce)
		f.World.SetVelocity(ball, physics.Velocity{Linear: direction.Mul(ServeSpeed), Angular: angularOf(f.World, ball)})
		return
	}
	if ball, _, ok := matchPair(f.Scene, ev.A, ev.B, RoleBall, RoleTable); ok {
		pose, _ := f.World.Transform(ball)
		simulation.TableContact(f.context(), f.publisher(), f.Tick, f.Scene.Ref(ball), simulation.TableContactPayload{
			X:        pose.Translation[0],
			Y:        pose.Translation[1],
			Z:        pose.Translation[2],
			Launched: f.Session.Launched,
		})
	}
}

func angularOf(world physics.Backend, id physics.EntityID) mgl32.Vec3 {
	vel, _ := world.Velocity(id)
	return vel.Angular
}

func normalizeOrZero(v mgl32.Vec3) mgl32.Vec3 {
	length := v.Len()
	if length == 0 || math32.IsNaN(length) || math32.IsInf(length, 0) {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / length)
}

func ballPayload(f *Frame, ball physics.EntityID, reason string) lifecycle.BallPayload {
	pose, _ := f.World.Transform(ball)
	return lifecycle.BallPayload{
		X:       pose.Translation[0],
		Y:       pose.Translation[1],
		Z:       pose.Translation[2],
		Bounces: f.Session.Bounces,
		Reason:  reason,
	}
}
