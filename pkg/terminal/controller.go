package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/harun/sockrepl/pkg/editor"
	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/rs/zerolog"
)

// Config holds terminal controller configuration
type Config struct {
	// DumbTerminal requests line-buffered input even on a capable terminal
	DumbTerminal bool
	// AutoIndent pre-fills continuation lines in raw mode
	AutoIndent bool
	Platform   Platform
	RawMode    RawMode
	Input      io.Reader
	Output     io.Writer
	Poster     reactor.Poster
	Logger     zerolog.Logger
	// Notify subscribes ch to interrupt signals in dumb mode.
	// Defaults to signal.Notify for os.Interrupt.
	Notify func(ch chan<- os.Signal)
	// Stop unsubscribes ch. Defaults to signal.Stop.
	Stop func(ch chan<- os.Signal)
}

// Controller decides the local input mode and builds the local editor
type Controller struct {
	cfg  Config
	dumb bool

	mu       sync.Mutex
	setup    bool
	rawOn    bool
	restored bool
	sigCh    chan os.Signal
	done     chan struct{}
	logger   zerolog.Logger
}

// NewController applies the mode policy: dumb when the platform cannot do raw
// input, otherwise as configured.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Poster == nil {
		return nil, fmt.Errorf("poster is required")
	}
	if cfg.Platform == nil {
		cfg.Platform = DefaultPlatform()
	}
	if cfg.RawMode == nil {
		cfg.RawMode = NewRawMode()
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Notify == nil {
		cfg.Notify = func(ch chan<- os.Signal) { signal.Notify(ch, os.Interrupt) }
	}
	if cfg.Stop == nil {
		cfg.Stop = signal.Stop
	}

	c := &Controller{
		cfg:    cfg,
		dumb:   !cfg.Platform.SupportsRawMode() || cfg.DumbTerminal,
		done:   make(chan struct{}),
		logger: cfg.Logger.With().Str("component", "terminal").Logger(),
	}
	return c, nil
}

// Dumb reports whether the local session uses line-buffered input
func (c *Controller) Dumb() bool {
	return c.dumb
}

// Setup prepares the terminal and returns the local session's editor.
// It may be called once.
func (c *Controller) Setup() (editor.Editor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setup {
		return nil, fmt.Errorf("terminal already set up")
	}
	c.setup = true

	if c.dumb {
		return c.setupDumb()
	}
	return c.setupRaw()
}

func (c *Controller) setupRaw() (editor.Editor, error) {
	if err := c.cfg.RawMode.Enable(); err != nil {
		return nil, err
	}
	c.rawOn = true

	keys := NewKeyForwarder(c.cfg.Input, nil)
	ed, err := editor.NewTerminalEditor(editor.TerminalConfig{
		Input:      keys,
		Output:     c.cfg.Output,
		Poster:     c.cfg.Poster,
		Logger:     c.logger,
		Injector:   keys,
		AutoIndent: c.cfg.AutoIndent,
	})
	if err != nil {
		return nil, err
	}
	keys.SetInterruptHandler(ed.Interrupt)

	if sizer, ok := c.cfg.Platform.(Sizer); ok {
		if w, h, err := sizer.Size(); err == nil {
			_ = ed.SetSize(w, h)
		}
	}

	c.logger.Debug().Msg("Raw terminal mode enabled")
	return ed, nil
}

func (c *Controller) setupDumb() (editor.Editor, error) {
	ed, err := editor.NewStreamEditor(editor.StreamConfig{
		Reader: c.cfg.Input,
		Writer: c.cfg.Output,
		Poster: c.cfg.Poster,
		Logger: c.logger,
	})
	if err != nil {
		return nil, err
	}

	c.sigCh = make(chan os.Signal, 1)
	c.cfg.Notify(c.sigCh)
	go c.forwardSignals(c.sigCh, ed)

	c.logger.Debug().Msg("Dumb terminal mode")
	return ed, nil
}

func (c *Controller) forwardSignals(ch <-chan os.Signal, target editor.Interrupter) {
	for {
		select {
		case <-ch:
			target.Interrupt()
		case <-c.done:
			return
		}
	}
}

// Restore undoes Setup: the terminal leaves raw mode and signal forwarding
// stops. Calling it again has no effect.
func (c *Controller) Restore() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restored {
		return nil
	}
	c.restored = true
	close(c.done)

	if c.sigCh != nil {
		c.cfg.Stop(c.sigCh)
	}
	if c.rawOn {
		return c.cfg.RawMode.Restore()
	}
	return nil
}
