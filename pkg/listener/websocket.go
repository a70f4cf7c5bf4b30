package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/sockrepl/internal/metrics"
	"github.com/harun/sockrepl/pkg/editor"
	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/harun/sockrepl/pkg/session"
	"github.com/rs/zerolog"
)

// WebSocketPath is the endpoint browser clients connect to
const WebSocketPath = "/repl"

// WebSocketListener serves remote sessions over websockets. It shares the
// session manager, and therefore the id sequence, with the TCP listener.
type WebSocketListener struct {
	addr     string
	loop     reactor.Poster
	manager  *session.Manager
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	queueSize    int
	writeTimeout time.Duration

	server *http.Server
	ln     net.Listener
	closed atomic.Bool
	done   chan struct{}
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// NewWebSocket creates a websocket listener from the same config as New
func NewWebSocket(cfg Config) (*WebSocketListener, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("address is required")
	}
	if cfg.Loop == nil {
		return nil, fmt.Errorf("loop is required")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	cfg = cfg.withDefaults()
	return &WebSocketListener{
		addr:         cfg.Addr,
		loop:         cfg.Loop,
		manager:      cfg.Manager,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "listener").Str("transport", "websocket").Logger(),
		queueSize:    cfg.QueueSize,
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Listen binds the address and starts serving
func (w *WebSocketListener) Listen(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return ErrClosed
	}
	if w.ln != nil {
		return fmt.Errorf("already listening on %s", w.ln.Addr())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", w.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.addr, err)
	}
	w.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, w.handleWebSocket)

	w.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Info().Str("addr", ln.Addr().String()).Str("path", WebSocketPath).Msg("WebSocket listener started")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error().Err(err).Msg("WebSocket server error")
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-w.done:
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Listen
func (w *WebSocketListener) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ln == nil {
		return nil
	}
	return w.ln.Addr()
}

// Close stops accepting upgrades. Hijacked connections stay open.
func (w *WebSocketListener) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.done)

	w.mu.Lock()
	server := w.server
	w.mu.Unlock()

	if server == nil {
		return nil
	}

	err := server.Close()
	w.wg.Wait()

	w.logger.Info().Msg("WebSocket listener stopped")
	return err
}

func (w *WebSocketListener) handleWebSocket(rw http.ResponseWriter, r *http.Request) {
	if w.closed.Load() {
		http.Error(rw, "Listener is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		w.metrics.TransportError("websocket")
		return
	}

	logger := w.logger.With().Str("addr", r.RemoteAddr).Logger()
	ed, err := editor.NewWebSocketEditor(editor.WebSocketConfig{
		Conn:   conn,
		Poster: w.loop,
		Logger: logger,
		OnError: func(error) {
			w.metrics.TransportError("websocket")
		},
		QueueSize:    w.queueSize,
		WriteTimeout: w.writeTimeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create editor")
		_ = conn.Close()
		return
	}

	err = w.loop.Post(func() {
		s, err := w.manager.OpenRemote(ed)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open session")
			_ = conn.Close()
			return
		}
		logger.Info().Int("session_id", s.ID()).Msg("Connection accepted")
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Dropping connection")
		_ = conn.Close()
	}
}
