package game

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"remote-pong/internal/physics"
	"remote-pong/logging/lifecycle"
)

const (
	wallX          = float32(-1.5)
	wallDamping    = float32(0.8)
	previewSteps   = 40
	previewStep    = float32(0.05)
	previewGravity = float32(-9.81)
)

// box is an axis-aligned region the ball must stay inside while in play.
type box struct {
	min mgl32.Vec3
	max mgl32.Vec3
}

func (b box) contains(p mgl32.Vec3) bool {
	if !physics.IsFinite(p) {
		return false
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.min[i] || p[i] > b.max[i] {
			return false
		}
	}
	return true
}

var (
	// playBounds only limits x from above; a ball past the back wall is
	// turned around by bounceOffBackWall instead.
	playBounds = box{
		min: mgl32.Vec3{-math32.MaxFloat32, 0, -2},
		max: mgl32.Vec3{2, 2, 2},
	}
	practiceBounds = box{
		min: mgl32.Vec3{-1, 0.5, -0.7},
		max: mgl32.Vec3{1, 2, 0.7},
	}

	serveTranslationMin = mgl32.Vec3{-0.3, 1.0, -0.4}
	serveTranslationMax = mgl32.Vec3{-0.1, 1.2, 0.4}
	serveVelocityMin    = mgl32.Vec3{2, 0, -1}
	serveVelocityMax    = mgl32.Vec3{4, 0, 1}
)

// enableGravity hands a launched ball to the integrator.
func enableGravity(f *Frame, ball physics.EntityID) {
	if scale, ok := f.World.GravityScale(ball); ok && scale == 0 {
		f.World.SetGravityScale(ball, 1)
	}
}

func overBounceLimit(s *Session) bool {
	return s.Bounces > MaxTableBounces
}

// controlBall runs the base lifecycle: gravity on once launched, and an
// immediate snap to RestPoint when the ball leaves the play area or has
// bounced too often. The check needs a paddle in the scene.
func controlBall(f *Frame) {
	if len(f.paddles()) == 0 {
		return
	}
	ball, ok := f.ball()
	if !ok {
		return
	}
	if f.Session.Launched {
		enableGravity(f, ball)
	}
	pose, _ := f.World.Transform(ball)
	outside := !playBounds.contains(pose.Translation)
	if !outside && !overBounceLimit(f.Session) {
		return
	}

	reason := "bounces"
	if outside {
		reason = "out_of_bounds"
	}
	payload := ballPayload(f, ball, reason)

	pose.Translation = RestPoint
	f.World.SetTransform(ball, pose)
	f.World.SetGravityScale(ball, 0)
	f.World.SetVelocity(ball, physics.Velocity{})
	f.Session.Launched = false
	f.Session.Bounces = 0
	lifecycle.BallReset(f.context(), f.publisher(), f.Tick, f.Scene.Ref(ball), payload)
}

// controlPracticeBall runs the practice lifecycle. Leaving the practice area
// or bouncing too often while launched schedules a randomised serve that is
// applied after PreviewResetDelay; until then a preview arc is kept up to date
// and nothing else happens.
func controlPracticeBall(f *Frame) {
	preview := &f.Session.Preview
	if preview.Pending {
		preview.Timer.Tick(f.Delta)
		if !preview.Timer.Finished() {
			preview.Arc = PreviewArc(preview.Translation, preview.Velocity, preview.Arc[:0])
			return
		}
		applyPendingReset(f)
	}

	ball, ok := f.ball()
	if !ok || !f.Session.Launched {
		return
	}
	enableGravity(f, ball)
	pose, _ := f.World.Transform(ball)
	outside := !practiceBounds.contains(pose.Translation)
	if !outside && !overBounceLimit(f.Session) {
		return
	}

	reason := "bounces"
	if outside {
		reason = "out_of_bounds"
	}
	*preview = TrajectoryPreview{
		Pending:     true,
		Timer:       NewTimer(PreviewResetDelay),
		Translation: sampleVec3(f, serveTranslationMin, serveTranslationMax),
		Velocity:    sampleVec3(f, serveVelocityMin, serveVelocityMax),
		Entity:      ball,
	}
	payload := ballPayload(f, ball, reason)
	lifecycle.ResetScheduled(f.context(), f.publisher(), f.Tick, f.Scene.Ref(ball), payload)
}

// applyPendingReset moves the captured ball to the cached serve. A ball that
// no longer exists drops the reset.
func applyPendingReset(f *Frame) {
	preview := &f.Session.Preview
	entity := preview.Entity
	if entity == 0 || !f.World.Exists(entity) {
		lifecycle.ResetDropped(f.context(), f.publisher(), f.Tick, f.Scene.Ref(entity), lifecycle.BallPayload{
			X:       preview.Translation[0],
			Y:       preview.Translation[1],
			Z:       preview.Translation[2],
			Bounces: f.Session.Bounces,
			Reason:  "entity_gone",
		})
		preview.Clear()
		return
	}
	f.World.SetTransform(entity, physics.Transform{Translation: preview.Translation, Rotation: mgl32.QuatIdent()})
	f.World.SetVelocity(entity, physics.Velocity{Linear: preview.Velocity})
	f.Session.Launched = false
	f.Session.Bounces = 0
	preview.Clear()
	lifecycle.BallReset(f.context(), f.publisher(), f.Tick, f.Scene.Ref(entity), ballPayload(f, entity, "serve"))
}

// PreviewArc integrates a ballistic path from the given start state. The
// result is appended to dst and holds previewSteps+1 points.
func PreviewArc(start, velocity mgl32.Vec3, dst []mgl32.Vec3) []mgl32.Vec3 {
	gravity := mgl32.Vec3{0, previewGravity, 0}
	pos := start
	vel := velocity
	dst = append(dst, pos)
	for i := 0; i < previewSteps; i++ {
		next := pos.Add(vel.Mul(previewStep)).Add(gravity.Mul(0.5 * previewStep * previewStep))
		vel = vel.Add(gravity.Mul(previewStep))
		pos = next
		dst = append(dst, pos)
	}
	return dst
}

// bounceOffBackWall turns a ball that passed the back wall around with some
// energy loss.
func bounceOffBackWall(f *Frame) {
	ball, ok := f.ball()
	if !ok {
		return
	}
	pose, _ := f.World.Transform(ball)
	if pose.Translation[0] >= wallX {
		return
	}
	vel, _ := f.World.Velocity(ball)
	if vel.Linear[0] < 0 {
		vel.Linear[0] = -vel.Linear[0]
	}
	vel.Linear[0] *= wallDamping
	f.World.SetVelocity(ball, vel)
}

func sampleVec3(f *Frame, lo, hi mgl32.Vec3) mgl32.Vec3 {
	var out mgl32.Vec3
	for i := 0; i < 3; i++ {
		out[i] = sampleRange(f, lo[i], hi[i])
	}
	return out
}

func sampleRange(f *Frame, lo, hi float32) float32 {
	if hi <= lo || f.Rand == nil {
		return lo
	}
	return lo + f.Rand.Float32()*(hi-lo)
}
