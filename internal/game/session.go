package game

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"remote-pong/internal/physics"
)

const (
	// MaxTableBounces is the number of table contacts tolerated before a reset.
	MaxTableBounces = 2
	// PreviewResetDelay is how long a practice respawn waits before applying.
	PreviewResetDelay = 2 * time.Second
)

// Timer counts elapsed frame time towards a fixed duration. It fires once.
type Timer struct {
	Duration time.Duration
	Elapsed  time.Duration
}

// NewTimer returns a stopped-at-zero timer for d.
func NewTimer(d time.Duration) Timer {
	return Timer{Duration: d}
}

// Tick advances the timer by delta, saturating at Duration.
func (t *Timer) Tick(delta time.Duration) {
	if delta <= 0 {
		return
	}
	t.Elapsed = min(t.Elapsed+delta, t.Duration)
}

// Finished reports whether the full duration has elapsed.
func (t Timer) Finished() bool {
	return t.Elapsed >= t.Duration
}

// Remaining reports the time left before the timer finishes.
func (t Timer) Remaining() time.Duration {
	return max(t.Duration-t.Elapsed, 0)
}

// TrajectoryPreview holds a delayed practice respawn. Arc is display-only.
type TrajectoryPreview struct {
	Pending     bool
	Timer       Timer
	Translation mgl32.Vec3
	Velocity    mgl32.Vec3
	Entity      physics.EntityID
	Arc         []mgl32.Vec3
}

// Clear drops any pending respawn.
func (p *TrajectoryPreview) Clear() {
	*p = TrajectoryPreview{}
}

// Session is the mutable state of one game session. Systems receive it
// explicitly; it is reset whenever a scene is (re)initialised.
type Session struct {
	Launched bool
	Bounces  uint32
	Preview  TrajectoryPreview
	Readout  string
}

// Reset returns the session to its initial state.
func (s *Session) Reset() {
	*s = Session{Readout: "0"}
}

// Phase names the ball lifecycle state derived from the session.
func (s *Session) Phase() string {
	switch {
	case s.Preview.Pending:
		return "pending_reset"
	case s.Launched:
		return "launched"
	default:
		return "idle"
	}
}

// SessionView is the read-only copy of a session exposed through snapshots.
type SessionView struct {
	Phase          string     `json:"phase"`
	Launched       bool       `json:"launched"`
	Bounces        uint32     `json:"bounces"`
	PendingReset   bool       `json:"pendingReset"`
	ResetRemaining string     `json:"resetRemaining,omitempty"`
	PreviewTarget  mgl32.Vec3 `json:"previewTarget"`
	PreviewArc     int        `json:"previewArcPoints,omitempty"`
}

func (s *Session) view() SessionView {
	view := SessionView{
		Phase:        s.Phase(),
		Launched:     s.Launched,
		Bounces:      s.Bounces,
		PendingReset: s.Preview.Pending,
	}
	if s.Preview.Pending {
		view.ResetRemaining = s.Preview.Timer.Remaining().String()
		view.PreviewTarget = s.Preview.Translation
		view.PreviewArc = len(s.Preview.Arc)
	}
	return view
}
