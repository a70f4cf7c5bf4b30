package editor

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Injector pushes synthetic keystrokes into the terminal input
type Injector interface {
	Inject(keys []byte)
}

// TerminalConfig configures a TerminalEditor
type TerminalConfig struct {
	// Input delivers raw keystrokes
	Input  io.Reader
	Output io.Writer
	Poster reactor.Poster
	Logger zerolog.Logger
	// Injector pre-fills continuation lines when AutoIndent is set
	Injector   Injector
	AutoIndent bool
}

// TerminalEditor is an interactive line editor for a raw-mode terminal.
// Ctrl-D on an empty line closes it. Ctrl-C must be translated by the key
// source, which calls Interrupt.
type TerminalEditor struct {
	emitter

	term       *term.Terminal
	injector   Injector
	autoIndent bool

	mu      sync.Mutex
	reading bool
	wake    chan struct{}
	done    chan struct{}
	started bool
}

// NewTerminalEditor creates a terminal editor
func NewTerminalEditor(cfg TerminalConfig) (*TerminalEditor, error) {
	if cfg.Input == nil {
		return nil, fmt.Errorf("input is required")
	}
	if cfg.Output == nil {
		return nil, fmt.Errorf("output is required")
	}
	if cfg.Poster == nil {
		return nil, fmt.Errorf("poster is required")
	}

	rw := struct {
		io.Reader
		io.Writer
	}{cfg.Input, cfg.Output}

	t := &TerminalEditor{
		term:       term.NewTerminal(rw, ""),
		injector:   cfg.Injector,
		autoIndent: cfg.AutoIndent,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	t.emitter.init(cfg.Poster, cfg.Logger)
	return t, nil
}

// SetPrompt sets the prompt used for the current or next line
func (t *TerminalEditor) SetPrompt(prompt string) {
	t.term.SetPrompt(prompt)
}

// Prompt starts reading the next line, or repaints the line being edited
func (t *TerminalEditor) Prompt() {
	if t.closed.Load() {
		return
	}

	t.mu.Lock()
	if t.reading {
		t.mu.Unlock()
		_, _ = t.term.Write(nil)
		return
	}
	t.reading = true
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// SetIndent pre-fills the next line with n spaces when auto-indent is on
func (t *TerminalEditor) SetIndent(n int) {
	if !t.autoIndent || t.injector == nil || n <= 0 {
		return
	}
	t.injector.Inject([]byte(strings.Repeat(" ", n)))
}

// Interrupt echoes ^C and emits SIGINT
func (t *TerminalEditor) Interrupt() {
	if t.closed.Load() {
		return
	}
	_, _ = t.term.Write([]byte("^C\n"))
	t.emit(EventSIGINT, "")
}

// SetSize updates the terminal width used for line wrapping
func (t *TerminalEditor) SetSize(width, height int) error {
	return t.term.SetSize(width, height)
}

// Output writes above the line being edited
func (t *TerminalEditor) Output() io.Writer {
	return t.term
}

// Start launches the reader goroutine
func (t *TerminalEditor) Start() error {
	if t.started {
		return fmt.Errorf("editor already started")
	}
	t.started = true

	go t.readLoop()
	return nil
}

// Close stops delivering events. The key source is not closed.
func (t *TerminalEditor) Close() error {
	if t.markClosed() {
		close(t.done)
	}
	return nil
}

func (t *TerminalEditor) readLoop() {
	for {
		select {
		case <-t.wake:
		case <-t.done:
			return
		}

		line, err := t.term.ReadLine()

		t.mu.Lock()
		t.reading = false
		t.mu.Unlock()

		if err != nil && !errors.Is(err, term.ErrPasteIndicator) {
			if !errors.Is(err, io.EOF) && !t.closed.Load() {
				t.logger.Warn().Err(err).Msg("Terminal read failed")
			}
			t.emitClose()
			return
		}
		t.emit(EventLine, line)
	}
}
