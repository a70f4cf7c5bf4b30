package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/harun/sockrepl/internal/config"
	"github.com/harun/sockrepl/internal/logger"
	"github.com/harun/sockrepl/internal/metrics"
	"github.com/harun/sockrepl/pkg/editor"
	"github.com/harun/sockrepl/pkg/engine"
	"github.com/harun/sockrepl/pkg/listener"
	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/harun/sockrepl/pkg/session"
	"github.com/harun/sockrepl/pkg/terminal"
	"github.com/rs/zerolog"
)

// Options carries the collaborators a Shell would otherwise build itself
type Options struct {
	Engine   engine.Engine
	Platform terminal.Platform
	RawMode  terminal.RawMode
	Input    io.Reader
	Output   io.Writer
	// Signals that trigger a global exit. Defaults to SIGTERM and SIGHUP.
	Signals []os.Signal
	// Notify is passed to the terminal controller for dumb-mode interrupts
	Notify func(ch chan<- os.Signal)
}

// Status describes a shell
type Status struct {
	Running   bool
	RunID     string
	StartTime time.Time
	Uptime    time.Duration
}

// Shell wires the session core to the terminal, the listeners and the
// ambient services
type Shell struct {
	config *config.Config
	logger *logger.Logger
	log    zerolog.Logger
	runID  string

	loop       *reactor.Loop
	engine     engine.Engine
	manager    *session.Manager
	exit       *session.ExitHandler
	history    *editor.History
	terminal   *terminal.Controller
	listener   *listener.Listener
	wsListener *listener.WebSocketListener
	metrics    *metrics.Metrics
	metricsSrv *http.Server
	metricsLn  net.Listener
	lifecycle  *LifecycleManager
	signals    []os.Signal

	// fatal is set on the loop goroutine and read after the loop stopped
	fatal error

	startTime time.Time
	running   bool
	stopped   bool
	mu        sync.RWMutex
}

// New builds a shell from configuration. Nothing is bound until Start.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Shell, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.New().String()
	zl := log.GetZerolog().With().Str("run_id", runID).Logger()

	s := &Shell{
		config:  cfg,
		logger:  log,
		log:     log.Component("shell").With().Str("run_id", runID).Logger(),
		runID:   runID,
		loop:    reactor.New(zl),
		history: editor.NewHistory(cfg.History.MaxEntries),
		signals: opts.Signals,
	}
	if s.signals == nil {
		s.signals = []os.Signal{syscall.SIGTERM, syscall.SIGHUP}
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.NewMetrics()
	}

	s.engine = opts.Engine
	if s.engine == nil {
		eng, err := engine.NewGoEngine(engine.GoEngineConfig{
			Namespace: cfg.Repl.Namespace,
			Logger:    zl,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		s.engine = eng
	}

	manager, err := session.NewManager(session.ManagerConfig{
		Engine:  s.engine,
		Logger:  zl,
		Metrics: s.metrics,
		History: s.history,
		Greeting: func(id int) string {
			return fmt.Sprintf("session %d connected\n", id)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	s.manager = manager

	exit, err := session.NewExitHandler(session.ExitConfig{
		Tokens:    cfg.Repl.ExitCommands,
		Manager:   manager,
		Terminate: s.terminate,
		Logger:    zl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exit handler: %w", err)
	}
	s.exit = exit
	exit.OnFlush(s.flushHistory)

	s.terminal, err = terminal.NewController(terminal.Config{
		DumbTerminal: cfg.Repl.DumbTerminal,
		AutoIndent:   cfg.Repl.AutoIndent,
		Platform:     opts.Platform,
		RawMode:      opts.RawMode,
		Input:        opts.Input,
		Output:       opts.Output,
		Poster:       s.loop,
		Logger:       zl,
		Notify:       opts.Notify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal controller: %w", err)
	}

	if addr := cfg.SocketAddr(); addr != "" {
		s.listener, err = listener.New(listener.Config{
			Addr:    addr,
			Loop:    s.loop,
			Manager: manager,
			Logger:  zl,
			Metrics: s.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create socket listener: %w", err)
		}
		exit.AddListener(s.listener)
	}

	if addr := cfg.WebSocketAddr(); addr != "" {
		s.wsListener, err = listener.NewWebSocket(listener.Config{
			Addr:    addr,
			Loop:    s.loop,
			Manager: manager,
			Logger:  zl,
			Metrics: s.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create websocket listener: %w", err)
		}
		exit.AddListener(s.wsListener)
	}

	if cfg.DataDir != "" {
		s.lifecycle = NewLifecycleManager(cfg.DataDir, zl)
	}

	return s, nil
}

// Start binds the listeners, prepares the terminal and queues the local
// session. Events are processed once Run is called.
func (s *Shell) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("shell is already running")
	}
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	s.log.Info().Bool("dumb_terminal", s.terminal.Dumb()).Msg("Starting sockrepl")

	if s.lifecycle != nil {
		if err := s.lifecycle.Start(); err != nil {
			return fmt.Errorf("failed to start lifecycle manager: %w", err)
		}
	}

	if err := s.history.Load(s.config.History.File); err != nil {
		s.log.Warn().Err(err).Msg("Failed to load history")
	}

	if err := s.startMetrics(); err != nil {
		return err
	}

	if s.listener != nil {
		if err := s.listener.Listen(ctx); err != nil {
			return fmt.Errorf("failed to start socket listener: %w", err)
		}
	}
	if s.wsListener != nil {
		if err := s.wsListener.Listen(ctx); err != nil {
			return fmt.Errorf("failed to start websocket listener: %w", err)
		}
	}

	ed, err := s.terminal.Setup()
	if err != nil {
		return fmt.Errorf("failed to set up terminal: %w", err)
	}

	err = s.loop.Post(func() {
		if _, err := s.manager.OpenLocal(ed); err != nil {
			s.log.Error().Err(err).Msg("Failed to open local session")
			s.fatal = fmt.Errorf("failed to open local session: %w", err)
			s.exit.Trigger()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to queue local session: %w", err)
	}

	s.log.Info().Msg("sockrepl started")
	return nil
}

// Run processes events until an exit command, a termination signal or ctx
// cancellation, then stops the shell.
func (s *Shell) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	if len(s.signals) > 0 {
		signal.Notify(sigCh, s.signals...)
		defer signal.Stop(sigCh)
	}

	go func() {
		select {
		case sig := <-sigCh:
			s.log.Info().Str("signal", sig.String()).Msg("Received signal")
			_ = s.loop.Post(s.exit.Trigger)
		case <-s.loop.Done():
		}
	}()

	err := s.loop.Run(ctx)
	stopErr := s.Stop()

	if s.fatal != nil {
		return s.fatal
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return stopErr
}

// Stop tears everything down. When the loop stopped without an exit command
// the exit sequence runs here, after the loop goroutine is gone.
func (s *Shell) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.running = false
	s.mu.Unlock()

	s.loop.Close()
	<-s.loop.Done()

	if !s.exit.Triggered() {
		s.exit.Trigger()
	}

	if err := s.terminal.Restore(); err != nil {
		s.log.Error().Err(err).Msg("Failed to restore terminal")
	}

	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("Failed to stop metrics server")
		}
		cancel()
	}

	if s.lifecycle != nil {
		if err := s.lifecycle.Stop(); err != nil {
			s.log.Error().Err(err).Msg("Failed to stop lifecycle manager")
		}
	}

	s.log.Info().Msg("sockrepl stopped")
	return nil
}

// Status returns the shell status
func (s *Shell) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running: s.running,
		RunID:   s.runID,
	}
	if s.running {
		status.StartTime = s.startTime
		status.Uptime = time.Since(s.startTime)
	}
	return status
}

// SocketAddr returns the bound TCP address, or nil when disabled
func (s *Shell) SocketAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the bound websocket address, or nil when disabled
func (s *Shell) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// MetricsAddr returns the bound metrics address, or nil when disabled
func (s *Shell) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

func (s *Shell) terminate(code int) {
	s.log.Info().Int("code", code).Msg("Terminating")
	s.loop.Close()
}

func (s *Shell) flushHistory() error {
	if s.config.History.File == "" {
		return nil
	}
	if err := s.history.Flush(s.config.History.File); err != nil {
		return err
	}
	s.log.Debug().Int("entries", s.history.Len()).Msg("History flushed")
	return nil
}

func (s *Shell) startMetrics() error {
	addr := s.config.MetricsAddr()
	if addr == "" || s.metrics == nil {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	s.metricsLn = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.metricsSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Metrics server started")
	return nil
}
