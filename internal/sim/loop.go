package sim

import (
	"context"
	"sync/atomic"
	"time"

	"remote-pong/logging"
)

// LoopConfig tunes the tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
}

// LoopTickContext describes the tick being advanced.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult reports timing for a completed tick.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
}

// LoopHooks lets callers observe the loop without owning it.
type LoopHooks struct {
	AfterStep func(LoopStepResult)
}

// EngineCore advances the game by one tick. Implementations own the
// consumer side of the command queue.
type EngineCore interface {
	Step(LoopTickContext)
}

// Loop pairs the command queue with the fixed-rate simulation runner.
type Loop struct {
	core   EngineCore
	queue  *CommandQueue
	hooks  LoopHooks
	config LoopConfig
	clock  logging.Clock
	tick   atomic.Uint64
}

// NewLoop wraps core with a ticker. The queue is shared with the network
// producers through Enqueue.
func NewLoop(core EngineCore, queue *CommandQueue, cfg LoopConfig, hooks LoopHooks, clock logging.Clock) *Loop {
	if core == nil {
		return nil
	}
	if queue == nil {
		queue = NewCommandQueue(nil)
	}
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Loop{
		core:   core,
		queue:  queue,
		hooks:  hooks,
		config: cfg,
		clock:  clock,
	}
}

// Enqueue stages a command for the next tick that consumes the queue.
func (l *Loop) Enqueue(cmd Command) {
	if l == nil {
		return
	}
	l.queue.Push(cmd)
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.queue.Len()
}


// Advance executes a single simulation step.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	l.tick.Store(ctx.Tick)
	l.core.Step(ctx)
	return LoopStepResult{
		Tick:  ctx.Tick,
		Now:   ctx.Now,
		Delta: ctx.Delta,
	}
}

// Run drives the fixed-rate loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}
	budgetDuration := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budgetDuration)
	defer ticker.Stop()

	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	last := l.clock.Now()
	tick := l.tick.Load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now
			tick++

			start := l.clock.Now()
			result := l.Advance(LoopTickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}
