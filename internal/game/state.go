package game

import "fmt"

// State is a node of the screen state machine.
type State uint8

const (
	StateMenu State = iota
	StateGameEntering
	StateGameIniting
	StateGameRunning
	StatePracticeEntering
	StatePracticeIniting
	StatePracticeRunning
)

var stateNames = map[State]string{
	StateMenu:             "menu",
	StateGameEntering:     "game_entering",
	StateGameIniting:      "game_initing",
	StateGameRunning:      "game_running",
	StatePracticeEntering: "practice_entering",
	StatePracticeIniting:  "practice_initing",
	StatePracticeRunning:  "practice_running",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Running reports whether s runs the per-tick gameplay systems.
func (s State) Running() bool {
	return s == StateGameRunning || s == StatePracticeRunning
}

// Mode is the coarse selection exposed to operators.
type Mode string

const (
	ModeMenu     Mode = "menu"
	ModePlay     Mode = "play"
	ModePractice Mode = "practice"
)

// ParseMode validates an operator supplied mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeMenu, ModePlay, ModePractice:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// EntryState is the state a mode request moves the machine to.
func (m Mode) EntryState() State {
	switch m {
	case ModePlay:
		return StateGameEntering
	case ModePractice:
		return StatePracticeEntering
	default:
		return StateMenu
	}
}

// ModeOf maps a state back to its mode.
func ModeOf(s State) Mode {
	switch s {
	case StateGameEntering, StateGameIniting, StateGameRunning:
		return ModePlay
	case StatePracticeEntering, StatePracticeIniting, StatePracticeRunning:
		return ModePractice
	default:
		return ModeMenu
	}
}

// Transition describes one applied state change.
type Transition struct {
	From State
	To   State
}

// Scheduler is the state machine plus the system groups gated by it. A
// requested state becomes current at the start of the next tick, one
// transition per tick; OnEnter hooks of the new state run at that moment and
// may request the following state.
type Scheduler struct {
	current State
	next    *State
	onEnter map[State][]func()
	groups  map[State][]System
}

// NewScheduler starts the machine in initial without running its OnEnter hooks.
func NewScheduler(initial State) *Scheduler {
	return &Scheduler{
		current: initial,
		onEnter: make(map[State][]func()),
		groups:  make(map[State][]System),
	}
}

// OnEnter registers a hook that runs when state becomes current.
func (s *Scheduler) OnEnter(state State, hook func()) {
	s.onEnter[state] = append(s.onEnter[state], hook)
}

// AddSystems appends systems that run every tick while state is current.
func (s *Scheduler) AddSystems(state State, systems ...System) {
	s.groups[state] = append(s.groups[state], systems...)
}

// Current reports the active state.
func (s *Scheduler) Current() State {
	return s.current
}

// Request stages a transition for the next ApplyTransition. A later request
// in the same tick replaces an earlier one.
func (s *Scheduler) Request(next State) {
	s.next = &next
}

// Pending reports the staged state, if any.
func (s *Scheduler) Pending() (State, bool) {
	if s.next == nil {
		return 0, false
	}
	return *s.next, true
}

// ApplyTransition makes the staged state current and runs its OnEnter hooks.
// Requesting the current state re-enters it.
func (s *Scheduler) ApplyTransition() (Transition, bool) {
	if s.next == nil {
		return Transition{}, false
	}
	to := *s.next
	s.next = nil
	from := s.current
	s.current = to
	for _, hook := range s.onEnter[to] {
		hook()
	}
	return Transition{From: from, To: to}, true
}

// Run executes the current group in registration order.
func (s *Scheduler) Run(f *Frame) {
	for _, system := range s.groups[s.current] {
		system.Run(f)
	}
}
