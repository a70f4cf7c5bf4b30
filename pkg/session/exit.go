package session

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultExitTokens are recognized when no tokens are configured
var DefaultExitTokens = []string{"exit", "quit", ":quit"}

// ExitConfig holds exit handler configuration
type ExitConfig struct {
	Tokens  []string
	Manager *Manager
	// Terminate ends the process. Defaults to os.Exit.
	Terminate func(code int)
	Logger    zerolog.Logger
}

// ExitHandler recognizes exit commands and performs global shutdown
type ExitHandler struct {
	tokens    map[string]struct{}
	manager   *Manager
	listeners []io.Closer
	flushers  []func() error
	terminate func(code int)
	triggered bool
	logger    zerolog.Logger
}

// NewExitHandler creates an exit handler and attaches it to the manager
func NewExitHandler(cfg ExitConfig) (*ExitHandler, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}

	tokens := cfg.Tokens
	if len(tokens) == 0 {
		tokens = DefaultExitTokens
	}
	if cfg.Terminate == nil {
		cfg.Terminate = os.Exit
	}

	h := &ExitHandler{
		tokens:    make(map[string]struct{}, len(tokens)),
		manager:   cfg.Manager,
		terminate: cfg.Terminate,
		logger:    cfg.Logger.With().Str("component", "exit").Logger(),
	}
	for _, t := range tokens {
		h.tokens[t] = struct{}{}
	}

	cfg.Manager.exit = h
	return h, nil
}

// IsExit reports whether text, without surrounding whitespace, is an exit token
func (h *ExitHandler) IsExit(text string) bool {
	_, ok := h.tokens[strings.TrimSpace(text)]
	return ok
}

// AddListener registers a listener closed on exit
func (h *ExitHandler) AddListener(l io.Closer) {
	h.listeners = append(h.listeners, l)
}

// OnFlush registers a function run after all sessions are destroyed
func (h *ExitHandler) OnFlush(fn func() error) {
	h.flushers = append(h.flushers, fn)
}

// Triggered reports whether shutdown has started
func (h *ExitHandler) Triggered() bool {
	return h.triggered
}

// Trigger closes listeners, destroys every session, runs the flush hooks and
// terminates with status 0. Only the first call has any effect.
func (h *ExitHandler) Trigger() {
	if h.triggered {
		return
	}
	h.triggered = true

	h.logger.Info().Int("sessions", h.manager.Len()).Msg("Shutting down")

	for _, l := range h.listeners {
		if err := l.Close(); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to close listener")
		}
	}

	h.manager.DestroyAll()

	for _, fn := range h.flushers {
		if err := fn(); err != nil {
			h.logger.Warn().Err(err).Msg("Flush failed")
		}
	}

	h.terminate(0)
}
