package app

import (
	"context"

	"remote-pong/internal/sim"
	"remote-pong/internal/telemetry"
	"remote-pong/logging"
	"remote-pong/logging/simulation"
)

const (
	metricOverrunTotal  = "sim_tick_budget_overrun_total"
	metricOverrunStreak = "sim_tick_budget_overrun_streak"
)

// budgetWatcher reports ticks that ran longer than the tick interval. Only
// the loop goroutine calls observe.
type budgetWatcher struct {
	publisher logging.Publisher
	metrics   telemetry.Metrics
	streak    uint64
}

func (w *budgetWatcher) observe(result sim.LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		if w.streak > 0 && w.metrics != nil {
			w.metrics.Store(metricOverrunStreak, 0)
		}
		w.streak = 0
		return
	}
	w.streak++
	if w.metrics != nil {
		w.metrics.Add(metricOverrunTotal, 1)
		w.metrics.Store(metricOverrunStreak, w.streak)
	}
	simulation.TickBudgetOverrun(context.Background(), w.publisher, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         w.streak,
	})
}
