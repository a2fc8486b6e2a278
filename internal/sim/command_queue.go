package sim

import "sync"

const (
	commandQueueDepthMetricKey   = "sim_command_queue_depth"
	commandQueuePushedMetricKey  = "sim_command_queue_pushed_total"
	commandQueueDrainedMetricKey = "sim_command_queue_drained_total"
)

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// CommandQueue stages commands between network goroutines and the simulation
// tick. It is unbounded, safe for concurrent producers and drained by a single
// consumer. The lock is only held for one push or one full drain.
type CommandQueue struct {
	mu      sync.Mutex
	pending []Command
	metrics telemetryMetrics
}

// NewCommandQueue constructs an empty queue. metrics may be nil.
func NewCommandQueue(metrics telemetryMetrics) *CommandQueue {
	return &CommandQueue{metrics: metrics}
}

// Push appends a command to the tail of the queue.
func (q *CommandQueue) Push(cmd Command) {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, cmd)
	depth := len(q.pending)
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Add(commandQueuePushedMetricKey, 1)
		q.metrics.Store(commandQueueDepthMetricKey, uint64(depth))
	}
}

// Drain returns every staged command in FIFO order and leaves the queue empty.
func (q *CommandQueue) Drain() []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	commands := q.pending
	q.pending = nil
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Add(commandQueueDrainedMetricKey, uint64(len(commands)))
		q.metrics.Store(commandQueueDepthMetricKey, 0)
	}
	return commands
}

// Len reports the number of staged commands.
func (q *CommandQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
