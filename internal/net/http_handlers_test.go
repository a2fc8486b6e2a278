package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"remote-pong/internal/game"
	"remote-pong/internal/net/ws"
	"remote-pong/internal/telemetry"
)

type stubGame struct {
	mu       sync.Mutex
	snapshot *game.Snapshot
	modes    []game.Mode
}

func (g *stubGame) Snapshot() *game.Snapshot {
	return g.snapshot
}

func (g *stubGame) RequestMode(mode game.Mode) {
	g.mu.Lock()
	g.modes = append(g.modes, mode)
	g.mu.Unlock()
}

func TestHTTPHealth(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestHTTPDiagnosticsIncludesGameAndTelemetry(t *testing.T) {
	counters := telemetry.NewCounters()
	counters.Add("net_frames_received_total", 3)
	stub := &stubGame{snapshot: &game.Snapshot{Tick: 42, State: "game_running", Mode: game.ModePlay, Readout: "0.250"}}
	handler := NewHTTPHandler(HTTPHandlerConfig{
		Game:     stub,
		Socket:   ws.NewHandler(ws.HandlerConfig{}),
		Counters: counters,
		TickRate: 60,
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}
	var payload struct {
		Status    string            `json:"status"`
		TickRate  int               `json:"tickRate"`
		Game      game.Snapshot     `json:"game"`
		Telemetry map[string]uint64 `json:"telemetry"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.TickRate != 60 {
		t.Fatalf("unexpected diagnostics header %+v", payload)
	}
	if payload.Game.Tick != 42 || payload.Game.Readout != "0.250" || payload.Game.Mode != game.ModePlay {
		t.Fatalf("unexpected game snapshot %+v", payload.Game)
	}
	if payload.Telemetry["net_frames_received_total"] != 3 {
		t.Fatalf("expected telemetry counters, got %v", payload.Telemetry)
	}
}

func TestHTTPModeRequestsTransition(t *testing.T) {
	stub := &stubGame{}
	handler := NewHTTPHandler(HTTPHandlerConfig{Game: stub})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/mode", bytes.NewReader([]byte(`{"mode":"practice"}`))))

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(stub.modes) != 1 || stub.modes[0] != game.ModePractice {
		t.Fatalf("expected practice to be requested, got %v", stub.modes)
	}
}

func TestHTTPModeRejectsBadRequests(t *testing.T) {
	stub := &stubGame{}
	handler := NewHTTPHandler(HTTPHandlerConfig{Game: stub})

	cases := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{name: "get", method: http.MethodGet, code: http.StatusMethodNotAllowed},
		{name: "unknown mode", method: http.MethodPost, body: `{"mode":"arcade"}`, code: http.StatusBadRequest},
		{name: "malformed", method: http.MethodPost, body: `{"mode":`, code: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, httptest.NewRequest(tc.method, "/mode", bytes.NewReader([]byte(tc.body))))
			if resp.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, resp.Code)
			}
		})
	}
	if len(stub.modes) != 0 {
		t.Fatalf("expected no mode requests, got %v", stub.modes)
	}
}
