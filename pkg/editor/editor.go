package editor

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/rs/zerolog"
)

// Event names a line-editor event
type Event string

const (
	// EventLine fires for every complete input line, without its terminator
	EventLine Event = "line"
	// EventSIGINT fires when the user interrupts the current input
	EventSIGINT Event = "SIGINT"
	// EventClose fires once when the underlying transport ends
	EventClose Event = "close"
)

// Handler receives the event argument. It is empty for SIGINT and close.
type Handler func(arg string)

// Editor is a per-session line-editing facility
type Editor interface {
	// SetPrompt sets the prompt shown by the next call to Prompt
	SetPrompt(prompt string)
	// Prompt renders the current prompt
	Prompt()
	// On registers the handler for an event, replacing any previous one
	On(event Event, handler Handler)
	// Output is the sink for everything written back to the user
	Output() io.Writer
	// Start begins delivering events
	Start() error
	// Close releases the transport. No close event is emitted for it.
	Close() error
}

// Indenter is implemented by editors that can pre-fill continuation lines
type Indenter interface {
	SetIndent(n int)
}

// Interrupter is implemented by editors whose key source can report Ctrl-C
type Interrupter interface {
	Interrupt()
}

// emitter delivers events through a poster so handlers always run on the
// loop goroutine. Handlers must be registered from that goroutine too.
type emitter struct {
	poster   reactor.Poster
	handlers map[Event]Handler
	closed   atomic.Bool
	once     sync.Once
	logger   zerolog.Logger
}

func (e *emitter) init(poster reactor.Poster, logger zerolog.Logger) {
	e.poster = poster
	e.handlers = make(map[Event]Handler)
	e.logger = logger
}

func (e *emitter) On(event Event, handler Handler) {
	e.handlers[event] = handler
}

func (e *emitter) emit(event Event, arg string) {
	if e.closed.Load() {
		return
	}
	err := e.poster.Post(func() {
		if h := e.handlers[event]; h != nil {
			h(arg)
		}
	})
	if err != nil {
		e.logger.Debug().Err(err).Str("event", string(event)).Msg("Event dropped")
	}
}

// emitClose reports the end of the transport at most once, and never after
// the editor was closed locally.
func (e *emitter) emitClose() {
	e.once.Do(func() {
		e.emit(EventClose, "")
	})
}

// markClosed reports whether this call closed the emitter
func (e *emitter) markClosed() bool {
	return e.closed.CompareAndSwap(false, true)
}
