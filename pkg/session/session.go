package session

import (
	"io"
	"strings"
	"time"

	"github.com/harun/sockrepl/pkg/editor"
)

// Kind distinguishes the terminal session from socket sessions
type Kind string

const (
	// KindLocal is the session bound to the process terminal
	KindLocal Kind = "local"
	// KindRemote is a session bound to one network connection
	KindRemote Kind = "remote"
)

// LocalID is the id of the local session
const LocalID = 0

// Recorder receives every line accepted by a session
type Recorder interface {
	Add(line string)
}

// Session is one client's interactive state
type Session struct {
	id        int
	kind      Kind
	buffer    strings.Builder
	editor    editor.Editor
	recorder  Recorder
	manager   *Manager
	createdAt time.Time
	destroyed bool
}

// ID returns the session id
func (s *Session) ID() int {
	return s.id
}

// Kind returns whether the session is local or remote
func (s *Session) Kind() Kind {
	return s.kind
}

// Output returns the session's output sink
func (s *Session) Output() io.Writer {
	return s.editor.Output()
}

// Editor returns the session's line editor
func (s *Session) Editor() editor.Editor {
	return s.editor
}

// Buffer returns the accumulated, not yet dispatched input
func (s *Session) Buffer() string {
	return s.buffer.String()
}

// Destroyed reports whether the session has been removed from the registry
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// CurrentPrompt returns the prompt for the session's present state
func (s *Session) CurrentPrompt() string {
	ns := s.manager.engine.CurrentNamespace()
	if s.buffer.Len() == 0 {
		return PrimaryPrompt(ns)
	}
	return SecondaryPrompt(ns)
}

// Accept appends a line to the buffer and dispatches the buffer once the
// engine reports it complete.
func (s *Session) Accept(line string) {
	if s.destroyed {
		return
	}

	m := s.manager
	m.metrics.LineAccepted(string(s.kind))
	if s.recorder != nil {
		s.recorder.Add(line)
	}

	s.buffer.WriteString(line)
	s.buffer.WriteByte('\n')

	text := s.buffer.String()
	if !m.engine.IsReady(text) {
		s.ShowPrompt()
		return
	}

	if m.exit != nil && m.exit.IsExit(text) {
		s.buffer.Reset()
		m.logger.Info().Int("session_id", s.id).Msg("Exit requested")
		m.exit.Trigger()
		return
	}

	if strings.TrimSpace(text) != "" {
		start := time.Now()
		m.engine.Execute(text, s)
		m.metrics.UnitDispatched(string(s.kind), time.Since(start))
	}
	s.buffer.Reset()

	if s.destroyed {
		return
	}
	s.ShowPrompt()
}

// Interrupt drops the pending input and shows the primary prompt
func (s *Session) Interrupt() {
	if s.destroyed {
		return
	}

	s.manager.metrics.Interrupted()
	s.manager.logger.Debug().
		Int("session_id", s.id).
		Int("discarded", s.buffer.Len()).
		Msg("Input interrupted")

	s.buffer.Reset()
	s.ShowPrompt()
}

// ShowPrompt sets and renders the prompt for the current state
func (s *Session) ShowPrompt() {
	if s.destroyed {
		return
	}

	s.editor.SetPrompt(s.CurrentPrompt())
	if s.buffer.Len() > 0 {
		if ind, ok := s.editor.(editor.Indenter); ok {
			ind.SetIndent(s.manager.engine.ContinuationIndent(s.buffer.String()))
		}
	}
	s.editor.Prompt()
}
