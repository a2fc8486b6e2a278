package network

import (
	"context"

	"remote-pong/logging"
)

const (
	// EventConnectionAccepted is emitted after a controller completes the TLS and websocket handshakes.
	EventConnectionAccepted logging.EventType = "network.connection_accepted"
	// EventConnectionClosed is emitted when a controller connection ends for any reason.
	EventConnectionClosed logging.EventType = "network.connection_closed"
	// EventHandshakeFailed is emitted when a TLS or websocket handshake fails.
	EventHandshakeFailed logging.EventType = "network.handshake_failed"
	// EventFrameDropped is emitted when a text frame does not decode into a command.
	EventFrameDropped logging.EventType = "network.frame_dropped"
)

// ConnectionPayload describes a controller connection.
type ConnectionPayload struct {
	RemoteAddr string `json:"remoteAddr"`
	Reason     string `json:"reason,omitempty"`
	Frames     uint64 `json:"frames,omitempty"`
	Commands   uint64 `json:"commands,omitempty"`
}

// HandshakePayload captures which handshake stage failed.
type HandshakePayload struct {
	Stage      string `json:"stage"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Error      string `json:"error"`
}

// FramePayload captures a dropped frame.
type FramePayload struct {
	Frame string `json:"frame"`
}

// ConnectionAccepted publishes an info event for a new controller connection.
func ConnectionAccepted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ConnectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionAccepted,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ConnectionClosed publishes an info event when a controller connection terminates.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ConnectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionClosed,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// HandshakeFailed publishes a warning when a connection cannot be established.
func HandshakeFailed(ctx context.Context, pub logging.Publisher, payload HandshakePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHandshakeFailed,
		Actor:    logging.EntityRef{Kind: logging.EntityKindConnection},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// FrameDropped publishes a debug event for a frame that carried no command.
func FrameDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload FramePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFrameDropped,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
