package game

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"remote-pong/internal/physics"
	"remote-pong/internal/sim"
	"remote-pong/internal/telemetry"
	"remote-pong/logging"
	"remote-pong/logging/simulation"
)

const (
	metricTick       = "game_tick"
	metricBodies     = "game_physics_bodies"
	metricDiscarded  = "game_commands_discarded_total"
	metricTransition = "game_state_transitions_total"
)

// Config wires an Engine.
type Config struct {
	Mode      Mode
	Physics   physics.Config
	Seed      int64
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
}

// Engine owns the physics world, the active scene and the session, and
// advances them once per loop tick. It implements sim.EngineCore.
type Engine struct {
	world     *physics.World
	queue     *sim.CommandQueue
	scheduler *Scheduler
	scene     Scene
	session   Session
	rng       *rand.Rand
	publisher logging.Publisher
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	requestMu sync.Mutex
	requested *State

	tick     uint64
	snapshot atomic.Pointer[Snapshot]
}

var _ sim.EngineCore = (*Engine)(nil)

// NewEngine builds the state machine. The engine starts in the menu and, if
// cfg.Mode selects a game, enters it on the first tick.
func NewEngine(queue *sim.CommandQueue, cfg Config) *Engine {
	if queue == nil {
		queue = sim.NewCommandQueue(cfg.Metrics)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		world:     physics.NewWorld(cfg.Physics),
		queue:     queue,
		scheduler: NewScheduler(StateMenu),
		rng:       rand.New(rand.NewSource(seed)),
		publisher: publisher,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	e.session.Reset()
	e.registerStates()
	if cfg.Mode != "" && cfg.Mode != ModeMenu {
		e.scheduler.Request(cfg.Mode.EntryState())
	}
	e.publishSnapshot()
	return e
}

func (e *Engine) registerStates() {
	s := e.scheduler
	s.OnEnter(StateGameEntering, func() { s.Request(StateGameIniting) })
	s.OnEnter(StateGameIniting, func() {
		e.enterScene(VariantPlay)
		s.Request(StateGameRunning)
	})
	s.OnEnter(StatePracticeEntering, func() { s.Request(StatePracticeIniting) })
	s.OnEnter(StatePracticeIniting, func() {
		e.enterScene(VariantPractice)
		s.Request(StatePracticeRunning)
	})
	s.OnEnter(StateMenu, e.leaveScene)

	shared := []System{
		{Name: "apply_commands", Run: applyCommands},
		{Name: "collision_events", Run: reactToCollisions},
		{Name: "contact_forces", Run: reactToContactForces},
		{Name: "back_wall_bounce", Run: bounceOffBackWall},
	}
	s.AddSystems(StateGameRunning, shared...)
	s.AddSystems(StateGameRunning, System{Name: "control_ball", Run: controlBall})
	s.AddSystems(StatePracticeRunning, shared...)
	s.AddSystems(StatePracticeRunning, System{Name: "control_practice_ball", Run: controlPracticeBall})
	s.AddSystems(StateMenu, System{Name: "discard_commands", Run: e.discardCommands})
}

func (e *Engine) enterScene(variant Variant) {
	if e.scene.Spawned() {
		e.scene.Despawn(e.world)
	}
	e.scene = SpawnScene(e.world, variant)
	e.session.Reset()
	e.world.DrainCollisionEvents()
	e.world.DrainContactForceEvents()
	if e.logger != nil {
		var names []string
		for _, id := range e.scene.bodies() {
			if name, ok := e.world.Name(id); ok {
				names = append(names, fmt.Sprintf("%s#%d", name, id))
			}
		}
		e.logger.Printf("[game] %s scene ready (%s)", variant, strings.Join(names, " "))
	}
}

func (e *Engine) leaveScene() {
	if !e.scene.Spawned() {
		return
	}
	e.scene.Despawn(e.world)
	e.session.Reset()
	e.world.DrainCollisionEvents()
	e.world.DrainContactForceEvents()
}

// discardCommands drops commands that arrive while no game is running.
func (e *Engine) discardCommands(f *Frame) {
	dropped := f.Commands.Drain()
	if len(dropped) > 0 && e.metrics != nil {
		e.metrics.Add(metricDiscarded, uint64(len(dropped)))
	}
}

// RequestMode asks the engine to switch mode on its next tick. It is safe to
// call from any goroutine.
func (e *Engine) RequestMode(mode Mode) {
	target := mode.EntryState()
	e.requestMu.Lock()
	e.requested = &target
	e.requestMu.Unlock()
}

func (e *Engine) takeRequest() (State, bool) {
	e.requestMu.Lock()
	defer e.requestMu.Unlock()
	if e.requested == nil {
		return 0, false
	}
	target := *e.requested
	e.requested = nil
	return target, true
}

// Step advances one tick: pending state transition, the systems gated on the
// current state, then physics.
func (e *Engine) Step(tc sim.LoopTickContext) {
	e.tick = tc.Tick
	ctx := context.Background()

	if target, ok := e.takeRequest(); ok {
		e.scheduler.Request(target)
	}
	if tr, ok := e.scheduler.ApplyTransition(); ok {
		simulation.StateTransition(ctx, e.publisher, tc.Tick, simulation.StateTransitionPayload{From: tr.From.String(), To: tr.To.String()})
		if e.metrics != nil {
			e.metrics.Add(metricTransition, 1)
		}
	}

	frame := &Frame{
		Ctx:       ctx,
		Tick:      tc.Tick,
		Delta:     time.Duration(tc.Delta * float64(time.Second)),
		World:     e.world,
		Scene:     &e.scene,
		Session:   &e.session,
		Commands:  e.queue,
		Rand:      e.rng,
		Publisher: e.publisher,
	}
	e.scheduler.Run(frame)
	e.world.Step(float32(tc.Delta))

	if e.metrics != nil {
		e.metrics.Store(metricTick, tc.Tick)
		e.metrics.Store(metricBodies, uint64(e.world.Len()))
	}
	e.publishSnapshot()
}

func (e *Engine) publishSnapshot() {
	state := e.scheduler.Current()
	snap := &Snapshot{
		Tick:       e.tick,
		State:      state.String(),
		Mode:       ModeOf(state),
		Session:    e.session.view(),
		Readout:    e.session.Readout,
		QueueDepth: e.queue.Len(),
		Bodies:     e.world.Len(),
	}
	if e.scene.Ball != 0 {
		snap.Ball = viewBody(e.world, e.scene.Ball)
	}
	if len(e.scene.Paddles) > 0 {
		snap.Paddle = viewBody(e.world, e.scene.Paddles[0])
	}
	snap.Fingerprint = fingerprint(snap)
	e.snapshot.Store(snap)
}

// Snapshot returns the state published by the last tick.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// State reports the current state. Only the loop goroutine may call it.
func (e *Engine) State() State {
	return e.scheduler.Current()
}

// World exposes the physics world to the loop goroutine and tests.
func (e *Engine) World() *physics.World {
	return e.world
}

// Scene exposes the active scene to the loop goroutine and tests.
func (e *Engine) Scene() *Scene {
	return &e.scene
}

// Session exposes the active session to the loop goroutine and tests.
func (e *Engine) Session() *Session {
	return &e.session
}
