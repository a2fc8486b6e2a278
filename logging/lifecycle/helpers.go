package lifecycle

import (
	"context"

	"remote-pong/logging"
)

const (
	// EventBallLaunched is emitted when paddle contact hands the ball to physics.
	EventBallLaunched logging.EventType = "lifecycle.ball_launched"
	// EventTableBounce is emitted for every ball/table contact start.
	EventTableBounce logging.EventType = "lifecycle.table_bounce"
	// EventBallReset is emitted when the ball is re-homed.
	EventBallReset logging.EventType = "lifecycle.ball_reset"
	// EventResetScheduled is emitted when a delayed respawn starts counting down.
	EventResetScheduled logging.EventType = "lifecycle.reset_scheduled"
	// EventResetDropped is emitted when a delayed respawn finds its ball gone.
	EventResetDropped logging.EventType = "lifecycle.reset_dropped"
)

// BallPayload carries the ball pose at the time of the event.
type BallPayload struct {
	X       float32 `json:"x"`
	Y       float32 `json:"y"`
	Z       float32 `json:"z"`
	Bounces uint32  `json:"bounces"`
	Reason  string  `json:"reason,omitempty"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload BallPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

func BallLaunched(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BallPayload) {
	publish(ctx, pub, EventBallLaunched, logging.SeverityInfo, tick, actor, payload)
}

func TableBounce(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BallPayload) {
	publish(ctx, pub, EventTableBounce, logging.SeverityDebug, tick, actor, payload)
}

func BallReset(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BallPayload) {
	publish(ctx, pub, EventBallReset, logging.SeverityInfo, tick, actor, payload)
}

func ResetScheduled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BallPayload) {
	publish(ctx, pub, EventResetScheduled, logging.SeverityInfo, tick, actor, payload)
}

func ResetDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BallPayload) {
	publish(ctx, pub, EventResetDropped, logging.SeverityWarn, tick, actor, payload)
}
