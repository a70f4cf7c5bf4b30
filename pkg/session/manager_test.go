package session

import (
	"errors"
	"testing"

	"github.com/harun/sockrepl/pkg/editor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerRequiresEngine(t *testing.T) {
	_, err := NewManager(ManagerConfig{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestCreateLocalHasIDZero(t *testing.T) {
	m := newTestManager(t, &parenEngine{namespace: "main"})

	s, err := m.CreateLocal(newFakeEditor())
	require.NoError(t, err)
	assert.Equal(t, 0, s.ID())
	assert.Equal(t, KindLocal, s.Kind())

	_, err = m.CreateLocal(newFakeEditor())
	assert.ErrorIs(t, err, ErrLocalExists)

	_, err = m.CreateLocal(nil)
	assert.Error(t, err)
}

func TestRemoteIDsIncreaseAndAreNeverReused(t *testing.T) {
	m := newTestManager(t, &parenEngine{namespace: "main"})

	first, err := m.CreateRemote(newFakeEditor())
	require.NoError(t, err)
	second, err := m.CreateRemote(newFakeEditor())
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID())
	assert.Equal(t, 2, second.ID())

	m.Destroy(second)
	m.Destroy(first)

	third, err := m.CreateRemote(newFakeEditor())
	require.NoError(t, err)
	assert.Equal(t, 3, third.ID())

	local, err := m.CreateLocal(newFakeEditor())
	require.NoError(t, err)
	assert.Equal(t, 0, local.ID())

	fourth, err := m.CreateRemote(newFakeEditor())
	require.NoError(t, err)
	assert.Equal(t, 4, fourth.ID())

	assert.Equal(t, []int{0, 3, 4}, m.IDs())
}

func TestDestroyIsIdempotent(t *testing.T) {
	m := newTestManager(t, &parenEngine{namespace: "main"})
	ed := newFakeEditor()

	s, err := m.CreateRemote(ed)
	require.NoError(t, err)

	m.Destroy(s)
	m.Destroy(s)
	m.Destroy(nil)

	assert.True(t, s.Destroyed())
	assert.Equal(t, 1, ed.closed)
	assert.Equal(t, 0, m.Len())

	_, ok := m.Get(s.ID())
	assert.False(t, ok)
}

func TestDestroyAllEmptiesRegistry(t *testing.T) {
	m := newTestManager(t, &parenEngine{namespace: "main"})

	editors := []*fakeEditor{newFakeEditor(), newFakeEditor(), newFakeEditor()}
	_, err := m.OpenLocal(editors[0])
	require.NoError(t, err)
	_, err = m.OpenRemote(editors[1])
	require.NoError(t, err)
	_, err = m.OpenRemote(editors[2])
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	m.DestroyAll()

	assert.Equal(t, 0, m.Len())
	for _, ed := range editors {
		assert.Equal(t, 1, ed.closed)
	}
}

func TestRemoteCloseDestroysOnlyThatSession(t *testing.T) {
	m := newTestManager(t, &parenEngine{namespace: "main"})

	local, err := m.OpenLocal(newFakeEditor())
	require.NoError(t, err)

	firstEd := newFakeEditor()
	first, err := m.OpenRemote(firstEd)
	require.NoError(t, err)

	second, err := m.OpenRemote(newFakeEditor())
	require.NoError(t, err)

	firstEd.fire(editor.EventClose, "")

	assert.True(t, first.Destroyed())
	assert.False(t, second.Destroyed())
	assert.False(t, local.Destroyed())
	assert.Equal(t, []int{0, 2}, m.IDs())
}

func TestOpenWiresEditor(t *testing.T) {
	m, err := NewManager(ManagerConfig{
		Engine:   &parenEngine{namespace: "main"},
		Logger:   zerolog.Nop(),
		Greeting: func(id int) string { return "hello " + string(rune('0'+id)) + "\n" },
	})
	require.NoError(t, err)

	ed := newFakeEditor()
	s, err := m.OpenRemote(ed)
	require.NoError(t, err)

	assert.True(t, ed.started)
	assert.Contains(t, ed.handlers, editor.EventLine)
	assert.Contains(t, ed.handlers, editor.EventSIGINT)
	assert.Contains(t, ed.handlers, editor.EventClose)
	assert.Equal(t, []string{"main=> "}, ed.prompts)
	assert.Equal(t, "hello 1\n", ed.out.String())

	ed.fire(editor.EventLine, "(x)")
	assert.Equal(t, "", s.Buffer())
}

func TestOpenFailsWhenEditorCannotStart(t *testing.T) {
	m := newTestManager(t, &parenEngine{namespace: "main"})

	ed := newFakeEditor()
	ed.startErr = errors.New("no tty")

	_, err := m.OpenRemote(ed)
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, ed.closed)
}
