package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"time"

	"remote-pong/internal/game"
	"remote-pong/internal/net/ws"
	"remote-pong/internal/telemetry"
	"remote-pong/logging"
)

// GameControl is the slice of the engine the HTTP surface needs. Both methods
// are safe to call from request goroutines.
type GameControl interface {
	Snapshot() *game.Snapshot
	RequestMode(mode game.Mode)
}

type HTTPHandlerConfig struct {
	Game      GameControl
	Socket    *ws.Handler
	Counters  *telemetry.Counters
	LogStats  func() logging.RouterStats
	TickRate  int
	Logger    telemetry.Logger
	StartedAt time.Time
}

// NewHTTPHandler builds the control port mux: the controller websocket on
// "/", plus health, diagnostics and mode switching.
func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var snapshot *game.Snapshot
		if cfg.Game != nil {
			snapshot = cfg.Game.Snapshot()
		}
		var connections []ws.ConnectionInfo
		var accepted uint64
		if cfg.Socket != nil {
			connections = cfg.Socket.Registry().Snapshot()
			accepted = cfg.Socket.Registry().Total()
		}
		var logStats *logging.RouterStats
		if cfg.LogStats != nil {
			stats := cfg.LogStats()
			logStats = &stats
		}

		payload := struct {
			Status      string               `json:"status"`
			ServerTime  int64                `json:"serverTime"`
			UptimeMs    int64                `json:"uptimeMillis"`
			TickRate    int                  `json:"tickRate"`
			Game        *game.Snapshot       `json:"game"`
			Connections []ws.ConnectionInfo  `json:"connections"`
			Accepted    uint64               `json:"acceptedTotal"`
			Telemetry   map[string]uint64    `json:"telemetry"`
			Logging     *logging.RouterStats `json:"logging,omitempty"`
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			UptimeMs:    time.Since(startedAt).Milliseconds(),
			TickRate:    cfg.TickRate,
			Game:        snapshot,
			Connections: connections,
			Accepted:    accepted,
			Telemetry:   cfg.Counters.Snapshot(),
			Logging:     logStats,
		}

		data, err := json.Marshal(payload)
		if err != nil {
			logger.Printf("failed to encode diagnostics: %v", err)
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/mode", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Game == nil {
			httpError(w, "game unavailable", nethttp.StatusServiceUnavailable)
			return
		}

		var req struct {
			Mode string `json:"mode"`
		}
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}
		mode, err := game.ParseMode(req.Mode)
		if err != nil {
			httpError(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		cfg.Game.RequestMode(mode)
		logger.Printf("[net] mode change to %s requested by %s", mode, r.RemoteAddr)

		data, _ := json.Marshal(struct {
			Status string    `json:"status"`
			Mode   game.Mode `json:"mode"`
		}{Status: "accepted", Mode: mode})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(nethttp.StatusAccepted)
		w.Write(data)
	})

	if cfg.Socket != nil {
		mux.HandleFunc("/", cfg.Socket.Handle)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
