package game

import (
	"context"
	"math/rand"
	"time"

	"remote-pong/internal/physics"
	"remote-pong/internal/sim"
	"remote-pong/logging"
)

// Frame is the per-tick context handed to every system.
type Frame struct {
	Ctx       context.Context
	Tick      uint64
	Delta     time.Duration
	World     physics.Backend
	Scene     *Scene
	Session   *Session
	Commands  *sim.CommandQueue
	Rand      *rand.Rand
	Publisher logging.Publisher
}

func (f *Frame) context() context.Context {
	if f.Ctx == nil {
		return context.Background()
	}
	return f.Ctx
}

func (f *Frame) publisher() logging.Publisher {
	if f.Publisher == nil {
		return logging.NopPublisher()
	}
	return f.Publisher
}

// ball returns the live ball body, if any.
func (f *Frame) ball() (physics.EntityID, bool) {
	if f.Scene == nil || f.Scene.Ball == 0 || !f.World.Exists(f.Scene.Ball) {
		return 0, false
	}
	return f.Scene.Ball, true
}

// paddles returns the live paddle bodies.
func (f *Frame) paddles() []physics.EntityID {
	if f.Scene == nil {
		return nil
	}
	live := make([]physics.EntityID, 0, len(f.Scene.Paddles))
	for _, id := range f.Scene.Paddles {
		if f.World.Exists(id) {
			live = append(live, id)
		}
	}
	return live
}

// System is one named step of the per-tick schedule.
type System struct {
	Name string
	Run  func(*Frame)
}
