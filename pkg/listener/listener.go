package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/sockrepl/internal/metrics"
	"github.com/harun/sockrepl/pkg/editor"
	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/harun/sockrepl/pkg/session"
	"github.com/rs/zerolog"
)

// ErrClosed is returned when listening on a closed listener
var ErrClosed = errors.New("listener closed")

// acceptRetryDelay is the pause after a failed accept
const acceptRetryDelay = 50 * time.Millisecond

// Config holds listener configuration
type Config struct {
	// Addr is the host:port to bind. Port 0 picks a free port.
	Addr    string
	Loop    reactor.Poster
	Manager *session.Manager
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// QueueSize is the number of writes a client may lag behind before its
	// session is dropped. Defaults to editor.DefaultQueueSize.
	QueueSize int
	// WriteTimeout bounds each write to a client. Defaults to
	// editor.DefaultWriteTimeout.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = editor.DefaultQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = editor.DefaultWriteTimeout
	}
	return c
}

// Listener accepts TCP connections and opens one remote session per
// connection. The protocol is newline-delimited text.
type Listener struct {
	addr    string
	loop    reactor.Poster
	manager *session.Manager
	metrics *metrics.Metrics
	logger  zerolog.Logger

	queueSize    int
	writeTimeout time.Duration

	ln     net.Listener
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a listener. Nothing is bound until Listen.
func New(cfg Config) (*Listener, error) {
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
	return &Listener{
		addr:         cfg.Addr,
		loop:         cfg.Loop,
		manager:      cfg.Manager,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "listener").Str("transport", "tcp").Logger(),
		queueSize:    cfg.QueueSize,
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
	}, nil
}

// Listen binds the address and starts accepting. The listener closes when
// ctx is cancelled.
func (l *Listener) Listen(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return ErrClosed
	}
	if l.ln != nil {
		return fmt.Errorf("already listening on %s", l.ln.Addr())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}
	l.ln = ln

	l.logger.Info().Str("addr", ln.Addr().String()).Msg("Socket listener started")

	l.wg.Add(1)
	go l.acceptLoop()

	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.done:
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Listen
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close stops accepting and releases the socket. Sessions that are already
// open are left alone.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(l.done)

	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	if ln == nil {
		return nil
	}

	err := ln.Close()
	l.wg.Wait()

	l.logger.Info().Msg("Socket listener stopped")
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn().Err(err).Msg("Accept failed")
			l.metrics.TransportError("tcp")

			select {
			case <-l.done:
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := l.logger.With().Str("addr", remote).Logger()

	ed, err := editor.NewStreamEditor(editor.StreamConfig{
		Reader: conn,
		Writer: conn,
		Closer: conn,
		Poster: l.loop,
		Logger: logger,
		OnError: func(error) {
			l.metrics.TransportError("tcp")
		},
		QueueSize:    l.queueSize,
		WriteTimeout: l.writeTimeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create editor")
		_ = conn.Close()
		return
	}

	err = l.loop.Post(func() {
		s, err := l.manager.OpenRemote(ed)
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
