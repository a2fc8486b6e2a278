package net

import (
	"context"
	"crypto/tls"
	"io"
	stdnet "net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"remote-pong/internal/net/proto"
	"remote-pong/internal/net/ws"
	"remote-pong/internal/sim"
	"remote-pong/logging/network"
	"remote-pong/logging/sinks"
)

func startServer(t *testing.T, handler http.Handler, events *sinks.MemorySink) string {
	t.Helper()
	certPath, keyPath := writeSelfSigned(t, t.TempDir(), keyPKCS8)
	config, err := LoadTLSConfig(certPath, keyPath)
	if err != nil {
		t.Fatalf("load tls config: %v", err)
	}
	ln, err := Listen("127.0.0.1:0", config)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, ServerConfig{Name: "test", Handler: handler, Publisher: events})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Errorf("server did not shut down")
		}
	})
	return ln.Addr().String()
}

func TestServeAcceptsTLSWebsocketControllers(t *testing.T) {
	queue := sim.NewCommandQueue(nil)
	events := sinks.NewMemorySink()
	socket := ws.NewHandler(ws.HandlerConfig{Queue: queue, Publisher: events})
	addr := startServer(t, NewHTTPHandler(HTTPHandlerConfig{Socket: socket}), events)

	dialer := websocket.Dialer{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	conn, resp, err := dialer.Dial("wss://"+addr+"/", nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := proto.FormatRotation(0.75, 0, 0, 0)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, echo, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(echo) != strings.ToUpper(frame) {
		t.Fatalf("expected %q, got %q", strings.ToUpper(frame), echo)
	}

	deadline := time.Now().Add(5 * time.Second)
	for queue.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the command to be queued")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeReportsFailedTLSHandshakes(t *testing.T) {
	events := sinks.NewMemorySink()
	addr := startServer(t, http.NotFoundHandler(), events)

	raw, err := stdnet.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	raw.Write([]byte("garbage that is not a client hello\r\n"))
	raw.SetReadDeadline(time.Now().Add(5 * time.Second))
	io.Copy(io.Discard, raw)
	raw.Close()

	deadline := time.Now().Add(5 * time.Second)
	for len(events.EventsOfType(network.EventHandshakeFailed)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected a handshake failure event")
		}
		time.Sleep(5 * time.Millisecond)
	}
	payload, ok := events.EventsOfType(network.EventHandshakeFailed)[0].Payload.(network.HandshakePayload)
	if !ok || payload.Stage != "tls" || payload.RemoteAddr == "" {
		t.Fatalf("unexpected handshake payload %+v", payload)
	}

	// The listener keeps serving after a failed handshake.
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	resp, err := client.Get("https://" + addr + "/")
	if err != nil {
		t.Fatalf("expected server to keep serving: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 from the handler, got %d", resp.StatusCode)
	}
}

func TestListenRequiresTLS(t *testing.T) {
	if _, err := Listen("127.0.0.1:0", nil); err == nil {
		t.Fatalf("expected listen without tls config to fail")
	}
}

func TestAssetsServerServesDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>controller</h1>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	addr := startServer(t, NewAssetsHandler(dir), sinks.NewMemorySink())

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	resp, err := client.Get("https://" + addr + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "controller") {
		t.Fatalf("expected index page, got %d %q", resp.StatusCode, body)
	}
}

func TestResolveAssetsDir(t *testing.T) {
	base := t.TempDir()
	nested := filepath.Join(base, "server")
	if err := os.MkdirAll(filepath.Join(base, "dist"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	resolved, ok := resolveAssetsDirFrom(nested, "dist")
	if !ok || resolved != filepath.Join(base, "dist") {
		t.Fatalf("expected parent dist to resolve, got %q ok=%v", resolved, ok)
	}
	if _, ok := resolveAssetsDirFrom(nested, "missing"); ok {
		t.Fatalf("expected missing dir not to resolve")
	}
	if got, err := ResolveAssetsDir(filepath.Join(base, "dist")); err != nil || got != filepath.Join(base, "dist") {
		t.Fatalf("expected absolute dir to be used as is, got %q %v", got, err)
	}
}
