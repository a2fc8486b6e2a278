package net

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	stdnet "net"
	nethttp "net/http"
	"strings"
	"time"

	"remote-pong/internal/telemetry"
	"remote-pong/logging"
	"remote-pong/logging/network"
)

const (
	DefaultControlAddr = ":8080"
	DefaultAssetsAddr  = ":3000"

	shutdownTimeout = 5 * time.Second
	tlsErrorPrefix  = "http: TLS handshake error from "
)

type ServerConfig struct {
	Name      string
	Addr      string
	TLS       *tls.Config
	Handler   nethttp.Handler
	Publisher logging.Publisher
	Logger    telemetry.Logger
}

// Listen binds a TCP listener on addr and wraps it in TLS.
func Listen(addr string, config *tls.Config) (stdnet.Listener, error) {
	if config == nil {
		return nil, errors.New("tls config required")
	}
	ln, err := stdnet.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return tls.NewListener(ln, config), nil
}

// ListenAndServe binds cfg.Addr and serves until ctx is cancelled.
func ListenAndServe(ctx context.Context, cfg ServerConfig) error {
	ln, err := Listen(cfg.Addr, cfg.TLS)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, cfg)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Failed TLS handshakes only end the affected connection.
func Serve(ctx context.Context, ln stdnet.Listener, cfg ServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	name := cfg.Name
	if name == "" {
		name = "server"
	}

	srv := &nethttp.Server{
		Handler:  cfg.Handler,
		ErrorLog: log.New(&serverErrorWriter{publisher: publisher, logger: logger, name: name}, "", 0),
		BaseContext: func(stdnet.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("[%s] shutdown: %v", name, err)
		}
	}()
	defer close(done)

	logger.Printf("[%s] listening on %s", name, ln.Addr())
	err := srv.Serve(ln)
	if errors.Is(err, nethttp.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// NewAssetsHandler serves the controller app from dir.
func NewAssetsHandler(dir string) nethttp.Handler {
	return nethttp.FileServer(nethttp.Dir(dir))
}

// serverErrorWriter turns net/http's error log into handshake events. Other
// lines go to the plain logger.
type serverErrorWriter struct {
	publisher logging.Publisher
	logger    telemetry.Logger
	name      string
}

func (w *serverErrorWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if rest, ok := strings.CutPrefix(line, tlsErrorPrefix); ok {
		remote, reason, _ := strings.Cut(rest, ": ")
		network.HandshakeFailed(context.Background(), w.publisher, network.HandshakePayload{
			Stage:      "tls",
			RemoteAddr: remote,
			Error:      reason,
		})
		return len(p), nil
	}
	w.logger.Printf("[%s] %s", w.name, line)
	return len(p), nil
}
