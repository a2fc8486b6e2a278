package game

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"remote-pong/internal/physics"
	"remote-pong/internal/sim"
	"remote-pong/logging/sinks"
)

// scriptedWorld feeds hand-written events to the systems while keeping the
// real world for pose and velocity state.
type scriptedWorld struct {
	*physics.World
	collisions []physics.CollisionEvent
	forces     []physics.ContactForceEvent
}

func (w *scriptedWorld) DrainCollisionEvents() []physics.CollisionEvent {
	events := w.collisions
	w.collisions = nil
	return events
}

func (w *scriptedWorld) DrainContactForceEvents() []physics.ContactForceEvent {
	events := w.forces
	w.forces = nil
	return events
}

type fixture struct {
	world   *scriptedWorld
	scene   Scene
	session Session
	queue   *sim.CommandQueue
	events  *sinks.MemorySink
	tick    uint64
}

func newFixture(t *testing.T, variant Variant) *fixture {
	t.Helper()
	world := physics.NewWorld(physics.DefaultConfig())
	fx := &fixture{
		world:  &scriptedWorld{World: world},
		scene:  SpawnScene(world, variant),
		queue:  sim.NewCommandQueue(nil),
		events: sinks.NewMemorySink(),
	}
	fx.session.Reset()
	return fx
}

func (fx *fixture) frame(delta time.Duration) *Frame {
	fx.tick++
	return &Frame{
		Ctx:       context.Background(),
		Tick:      fx.tick,
		Delta:     delta,
		World:     fx.world,
		Scene:     &fx.scene,
		Session:   &fx.session,
		Commands:  fx.queue,
		Rand:      rand.New(rand.NewSource(42)),
		Publisher: fx.events,
	}
}

func (fx *fixture) placeBall(t *testing.T, x, y, z float32) {
	t.Helper()
	if !fx.world.SetTransform(fx.scene.Ball, physics.TransformFromTranslation(x, y, z)) {
		t.Fatalf("failed to place ball")
	}
}

func (fx *fixture) ballPose(t *testing.T) physics.Transform {
	t.Helper()
	pose, ok := fx.world.Transform(fx.scene.Ball)
	if !ok {
		t.Fatalf("ball missing")
	}
	return pose
}

func (fx *fixture) ballVelocity(t *testing.T) mgl32.Vec3 {
	t.Helper()
	vel, ok := fx.world.Velocity(fx.scene.Ball)
	if !ok {
		t.Fatalf("ball missing")
	}
	return vel.Linear
}

func (fx *fixture) paddle() physics.EntityID {
	return fx.scene.Paddles[0]
}

func vecApprox(a, b mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(a[i]-b[i]) > 1e-4 {
			return false
		}
	}
	return true
}
