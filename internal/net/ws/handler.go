package ws

import (
	"context"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"remote-pong/internal/net/proto"
	"remote-pong/internal/observability"
	"remote-pong/internal/sim"
	"remote-pong/internal/telemetry"
	"remote-pong/logging"
	"remote-pong/logging/network"
)

const (
	metricFramesReceived = "net_frames_received_total"
	metricFramesDropped  = "net_frames_dropped_total"
	metricConnections    = "net_connections_live"
)

type HandlerConfig struct {
	Queue     *sim.CommandQueue
	Registry  *Registry
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	// DropLogRate bounds how many dropped frames per second a single
	// connection reports. Zero means one per second with a burst of 5.
	DropLogRate  rate.Limit
	DropLogBurst int
}

// Handler upgrades controller connections and feeds their frames into the
// simulation command queue.
type Handler struct {
	queue     *sim.CommandQueue
	registry  *Registry
	publisher logging.Publisher
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	dropRate  rate.Limit
	dropBurst int
	upgrader  websocket.Upgrader
}

func NewHandler(cfg HandlerConfig) *Handler {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	dropRate, dropBurst := cfg.DropLogRate, cfg.DropLogBurst
	if dropRate == 0 {
		dropRate = rate.Every(time.Second)
	}
	if dropBurst <= 0 {
		dropBurst = 5
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		queue:     cfg.Queue,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
		metrics:   cfg.Metrics,
		dropRate:  dropRate,
		dropBurst: dropBurst,
		upgrader:  upgrader,
	}
}

// Registry exposes the live connection registry.
func (h *Handler) Registry() *Registry {
	return h.registry
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		network.HandshakeFailed(ctx, h.publisher, network.HandshakePayload{
			Stage:      "websocket",
			RemoteAddr: r.RemoteAddr,
			Error:      err.Error(),
		})
		return
	}

	state := &connectionState{
		id:         uuid.NewString(),
		remoteAddr: r.RemoteAddr,
		since:      time.Now(),
	}
	actor := logging.EntityRef{ID: state.id, Kind: logging.EntityKindConnection}
	pub := logging.WithFields(h.publisher, map[string]any{"remote_addr": state.remoteAddr})
	h.registry.add(state)
	h.storeLive()
	network.ConnectionAccepted(ctx, pub, actor, network.ConnectionPayload{RemoteAddr: state.remoteAddr})

	reason := "closed"
	defer func() {
		if recovered := recover(); recovered != nil {
			reason = "panic"
			h.logger.Printf("connection %s panicked: %v", state.id, recovered)
			observability.ReportPanic(recovered, map[string]string{
				"conn_id":     state.id,
				"remote_addr": state.remoteAddr,
			})
		}
		conn.Close()
		h.registry.remove(state.id)
		h.storeLive()
		network.ConnectionClosed(context.WithoutCancel(ctx), pub, actor, network.ConnectionPayload{
			RemoteAddr: state.remoteAddr,
			Reason:     reason,
			Frames:     state.frames.Load(),
			Commands:   state.commands.Load(),
		})
	}()

	reason = h.readLoop(ctx, conn, state, actor, pub)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, state *connectionState, actor logging.EntityRef, pub logging.Publisher) string {
	dropLimiter := rate.NewLimiter(h.dropRate, h.dropBurst)
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return "closed"
			}
			h.logger.Printf("read failed for %s: %v", state.id, err)
			return "read_error"
		}
		if messageType != websocket.TextMessage {
			continue
		}

		state.frames.Add(1)
		if h.metrics != nil {
			h.metrics.Add(metricFramesReceived, 1)
		}
		text := string(payload)

		if err := conn.WriteMessage(websocket.TextMessage, []byte(strings.ToUpper(text))); err != nil {
			h.logger.Printf("echo failed for %s: %v", state.id, err)
			return "write_error"
		}

		cmd, ok := proto.ParseFrame(text)
		if !ok {
			state.dropped.Add(1)
			if h.metrics != nil {
				h.metrics.Add(metricFramesDropped, 1)
			}
			if dropLimiter.Allow() {
				network.FrameDropped(ctx, pub, actor, network.FramePayload{Frame: text})
			}
			continue
		}
		h.queue.Push(cmd)
		state.commands.Add(1)
	}
}

func (h *Handler) storeLive() {
	if h.metrics == nil {
		return
	}
	h.metrics.Store(metricConnections, uint64(h.registry.Len()))
}
