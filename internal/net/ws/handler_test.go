package ws

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"remote-pong/internal/net/proto"
	"remote-pong/internal/sim"
	"remote-pong/internal/telemetry"
	"remote-pong/logging/network"
	"remote-pong/logging/sinks"
)

type harness struct {
	handler *Handler
	queue   *sim.CommandQueue
	events  *sinks.MemorySink
	metrics *telemetry.Counters
	url     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		queue:   sim.NewCommandQueue(nil),
		events:  sinks.NewMemorySink(),
		metrics: telemetry.NewCounters(),
	}
	h.handler = NewHandler(HandlerConfig{
		Queue:     h.queue,
		Publisher: h.events,
		Metrics:   h.metrics,
	})
	srv := httptest.NewTLSServer(http.HandlerFunc(h.handler.Handle))
	t.Cleanup(srv.Close)
	h.url = "wss" + strings.TrimPrefix(srv.URL, "https")
	return h
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: 5 * time.Second,
	}
	conn, resp, err := dialer.Dial(h.url, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAndReadEcho(t *testing.T, conn *websocket.Conn, frame string) string {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write %q: %v", frame, err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read echo for %q: %v", frame, err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("expected text echo, got type %d", messageType)
	}
	return string(payload)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleEchoesUppercaseAndQueuesCommands(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	frames := []string{
		proto.FormatRotation(0.5, 0, 0, 0.25),
		proto.FormatPosition(1, 2, 3),
	}
	for _, frame := range frames {
		if echo := sendAndReadEcho(t, conn, frame); echo != strings.ToUpper(frame) {
			t.Fatalf("expected echo %q, got %q", strings.ToUpper(frame), echo)
		}
	}

	waitFor(t, "two queued commands", func() bool { return h.queue.Len() == 2 })
	commands := h.queue.Drain()
	if commands[0] != sim.RotationCommand(0.5, 0, 0, 0.25) || commands[1] != sim.PositionCommand(1, 2, 3) {
		t.Fatalf("unexpected queued commands %+v", commands)
	}
	if got := len(h.events.EventsOfType(network.EventConnectionAccepted)); got != 1 {
		t.Fatalf("expected one accepted event, got %d", got)
	}
}

func TestHandleDropsMalformedFramesAndKeepsConnection(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	for _, frame := range []string{"rotation:1,2,3", "spin:1,2,3,4", "hello"} {
		if echo := sendAndReadEcho(t, conn, frame); echo != strings.ToUpper(frame) {
			t.Fatalf("expected malformed frame to be echoed, got %q", echo)
		}
	}
	sendAndReadEcho(t, conn, proto.FormatRotation(0.1, 0, 0, 0))

	waitFor(t, "the valid command", func() bool {
		infos := h.handler.Registry().Snapshot()
		return len(infos) == 1 && infos[0].Commands == 1
	})
	if got := len(h.events.EventsOfType(network.EventFrameDropped)); got != 3 {
		t.Fatalf("expected 3 dropped frame events, got %d", got)
	}
	if got := h.metrics.Snapshot()[metricFramesDropped]; got != 3 {
		t.Fatalf("expected 3 dropped frames counted, got %d", got)
	}
	infos := h.handler.Registry().Snapshot()
	if len(infos) != 1 || infos[0].Frames != 4 || infos[0].Commands != 1 || infos[0].Dropped != 3 {
		t.Fatalf("unexpected connection info %+v", infos)
	}
}

func TestHandleRateLimitsDropEvents(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	for i := 0; i < 20; i++ {
		sendAndReadEcho(t, conn, "garbage")
	}

	waitFor(t, "every dropped frame to be counted", func() bool {
		return h.metrics.Snapshot()[metricFramesDropped] == 20
	})
	dropped := len(h.events.EventsOfType(network.EventFrameDropped))
	if dropped < 5 || dropped >= 20 {
		t.Fatalf("expected the burst of drop events to be limited, got %d", dropped)
	}
}

func TestHandleIgnoresBinaryFrames(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte(proto.FormatRotation(1, 0, 0, 0))); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	sendAndReadEcho(t, conn, proto.FormatPosition(0, 0, 0))

	waitFor(t, "the text command", func() bool { return h.queue.Len() == 1 })
	if cmd := h.queue.Drain()[0]; cmd.Type != sim.CommandPosition {
		t.Fatalf("expected only the text frame to be queued, got %+v", cmd)
	}
}

func TestConnectionsAreIndependent(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t)
	second := h.dial(t)

	waitFor(t, "two live connections", func() bool { return h.handler.Registry().Len() == 2 })

	first.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	first.Close()
	waitFor(t, "the first connection to close", func() bool { return h.handler.Registry().Len() == 1 })

	sendAndReadEcho(t, second, proto.FormatRotation(0.2, 0, 0, 0))
	waitFor(t, "the surviving connection's command", func() bool { return h.queue.Len() == 1 })

	closed := h.events.EventsOfType(network.EventConnectionClosed)
	if len(closed) != 1 {
		t.Fatalf("expected one closed event, got %d", len(closed))
	}
	if payload, ok := closed[0].Payload.(network.ConnectionPayload); !ok || payload.Reason != "closed" {
		t.Fatalf("unexpected close payload %+v", closed[0].Payload)
	}
	if h.handler.Registry().Total() != 2 {
		t.Fatalf("expected two accepted connections in total, got %d", h.handler.Registry().Total())
	}
}

func TestHandleRejectsPlainHTTP(t *testing.T) {
	h := newHarness(t)
	handler := h.handler
	rec := httptest.NewRecorder()
	handler.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request for a non-upgrade request, got %d", rec.Code)
	}
	if got := len(h.events.EventsOfType(network.EventHandshakeFailed)); got != 1 {
		t.Fatalf("expected one handshake failure event, got %d", got)
	}
}
