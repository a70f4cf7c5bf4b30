package session

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/harun/sockrepl/internal/metrics"
	"github.com/harun/sockrepl/pkg/editor"
	"github.com/harun/sockrepl/pkg/engine"
	"github.com/rs/zerolog"
)

// ErrLocalExists is returned when a second local session is requested
var ErrLocalExists = errors.New("local session already exists")

// ManagerConfig holds session manager configuration
type ManagerConfig struct {
	Engine  engine.Engine
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// History records the lines of the local session. Optional.
	History Recorder
	// Greeting, when set, is written to every new remote session
	Greeting func(id int) string
}

// Manager owns the session registry and the remote id counter
type Manager struct {
	engine   engine.Engine
	sessions map[int]*Session
	nextID   int
	history  Recorder
	greeting func(id int) string
	exit     *ExitHandler
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewManager creates an empty registry
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	return &Manager{
		engine:   cfg.Engine,
		sessions: make(map[int]*Session),
		nextID:   LocalID + 1,
		history:  cfg.History,
		greeting: cfg.Greeting,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "session").Logger(),
	}, nil
}

// CreateLocal registers the local session with id 0
func (m *Manager) CreateLocal(ed editor.Editor) (*Session, error) {
	if ed == nil {
		return nil, fmt.Errorf("editor is required")
	}
	if _, exists := m.sessions[LocalID]; exists {
		return nil, ErrLocalExists
	}

	s := m.register(LocalID, KindLocal, ed)
	s.recorder = m.history
	return s, nil
}

// CreateRemote registers a remote session under the next unused id
func (m *Manager) CreateRemote(ed editor.Editor) (*Session, error) {
	if ed == nil {
		return nil, fmt.Errorf("editor is required")
	}

	id := m.nextID
	m.nextID++
	return m.register(id, KindRemote, ed), nil
}

// OpenLocal creates the local session, wires its editor and shows the prompt.
// Closing the local editor triggers a global exit.
func (m *Manager) OpenLocal(ed editor.Editor) (*Session, error) {
	s, err := m.CreateLocal(ed)
	if err != nil {
		return nil, err
	}
	if err := m.open(s); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenRemote creates a remote session, wires its editor and shows the prompt.
// Closing the remote editor destroys only that session.
func (m *Manager) OpenRemote(ed editor.Editor) (*Session, error) {
	s, err := m.CreateRemote(ed)
	if err != nil {
		return nil, err
	}
	if m.greeting != nil {
		_, _ = io.WriteString(s.Output(), m.greeting(s.id))
	}
	if err := m.open(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) open(s *Session) error {
	ed := s.editor
	ed.On(editor.EventLine, s.Accept)
	ed.On(editor.EventSIGINT, func(string) { s.Interrupt() })
	ed.On(editor.EventClose, func(string) { m.transportClosed(s) })

	if err := ed.Start(); err != nil {
		m.Destroy(s)
		return fmt.Errorf("failed to start editor for session %d: %w", s.id, err)
	}

	s.ShowPrompt()
	return nil
}

func (m *Manager) transportClosed(s *Session) {
	if s.destroyed {
		return
	}

	m.logger.Info().Int("session_id", s.id).Str("kind", string(s.kind)).Msg("Session transport closed")

	if s.kind == KindLocal && m.exit != nil {
		m.exit.Trigger()
		return
	}
	m.Destroy(s)
}

func (m *Manager) register(id int, kind Kind, ed editor.Editor) *Session {
	s := &Session{
		id:        id,
		kind:      kind,
		editor:    ed,
		manager:   m,
		createdAt: time.Now(),
	}
	m.sessions[id] = s
	m.metrics.SessionCreated(string(kind))

	m.logger.Info().Int("session_id", id).Str("kind", string(kind)).Msg("Session created")
	return s
}

// Destroy removes the session and closes its editor. Destroying a session
// twice is a no-op.
func (m *Manager) Destroy(s *Session) {
	if s == nil || s.destroyed {
		return
	}
	s.destroyed = true

	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
	if err := s.editor.Close(); err != nil {
		m.logger.Debug().Err(err).Int("session_id", s.id).Msg("Failed to close editor")
	}
	m.metrics.SessionDestroyed(string(s.kind))

	m.logger.Info().
		Int("session_id", s.id).
		Str("kind", string(s.kind)).
		Dur("age", time.Since(s.createdAt)).
		Msg("Session destroyed")
}

// DestroyAll destroys every registered session, leaving the registry empty
func (m *Manager) DestroyAll() {
	ids := m.IDs()
	for _, id := range ids {
		m.Destroy(m.sessions[id])
	}
	m.logger.Info().Int("count", len(ids)).Msg("All sessions destroyed")
}

// Get returns a registered session
func (m *Manager) Get(id int) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions
func (m *Manager) Len() int {
	return len(m.sessions)
}

// IDs returns the registered ids in ascending order
func (m *Manager) IDs() []int {
	ids := make([]int, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
