package session

import (
	"errors"
	"testing"

	"github.com/harun/sockrepl/pkg/editor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	closed int
	order  *[]string
}

func (c *countingCloser) Close() error {
	c.closed++
	if c.order != nil {
		*c.order = append(*c.order, "listener")
	}
	return nil
}

type exitFixture struct {
	manager *Manager
	exit    *ExitHandler
	engine  *parenEngine
	codes   []int
	order   []string
}

func newExitFixture(t *testing.T, tokens ...string) *exitFixture {
	t.Helper()

	f := &exitFixture{engine: &parenEngine{namespace: "main"}}
	f.manager = newTestManager(t, f.engine)

	h, err := NewExitHandler(ExitConfig{
		Tokens:  tokens,
		Manager: f.manager,
		Terminate: func(code int) {
			f.order = append(f.order, "terminate")
			f.codes = append(f.codes, code)
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	f.exit = h
	return f
}

func TestIsExit(t *testing.T) {
	f := newExitFixture(t)

	assert.True(t, f.exit.IsExit("exit"))
	assert.True(t, f.exit.IsExit("  quit \n"))
	assert.True(t, f.exit.IsExit(":quit\n"))
	assert.False(t, f.exit.IsExit("Exit"))
	assert.False(t, f.exit.IsExit("ex it"))
	assert.False(t, f.exit.IsExit("exit()"))
	assert.False(t, f.exit.IsExit(""))
}

func TestCustomExitTokens(t *testing.T) {
	f := newExitFixture(t, "bye")

	assert.True(t, f.exit.IsExit("bye\n"))
	assert.False(t, f.exit.IsExit("exit"))
}

func TestNewExitHandlerRequiresManager(t *testing.T) {
	_, err := NewExitHandler(ExitConfig{})
	assert.Error(t, err)
}

func TestExitCommandShutsDownOnce(t *testing.T) {
	f := newExitFixture(t)

	listener := &countingCloser{order: &f.order}
	f.exit.AddListener(listener)

	flushed := 0
	f.exit.OnFlush(func() error {
		f.order = append(f.order, "flush")
		flushed++
		return nil
	})

	localEd := newFakeEditor()
	_, err := f.manager.OpenLocal(localEd)
	require.NoError(t, err)

	remoteEd := newFakeEditor()
	remote, err := f.manager.OpenRemote(remoteEd)
	require.NoError(t, err)

	remote.Accept("   exit  ")

	assert.Empty(t, f.engine.executed)
	assert.Equal(t, 0, f.manager.Len())
	assert.Equal(t, []int{0}, f.codes)
	assert.Equal(t, 1, listener.closed)
	assert.Equal(t, 1, flushed)
	assert.Equal(t, []string{"listener", "flush", "terminate"}, f.order)
	assert.True(t, f.exit.Triggered())
	assert.Equal(t, 1, localEd.closed)
	assert.Equal(t, 1, remoteEd.closed)

	f.exit.Trigger()
	assert.Equal(t, []int{0}, f.codes)
	assert.Equal(t, 1, listener.closed)
}

func TestExitInsideMultilineUnit(t *testing.T) {
	f := newExitFixture(t)

	s, err := f.manager.OpenLocal(newFakeEditor())
	require.NoError(t, err)

	// "quit" only counts when it is the whole unit
	s.Accept("(quit")
	assert.Empty(t, f.codes)
	s.Accept(")")
	assert.Empty(t, f.codes)
	assert.Equal(t, []string{"(quit\n)\n"}, f.engine.executed)

	s.Accept("quit")
	assert.Equal(t, []int{0}, f.codes)
}

func TestLocalCloseTriggersExit(t *testing.T) {
	f := newExitFixture(t)

	localEd := newFakeEditor()
	_, err := f.manager.OpenLocal(localEd)
	require.NoError(t, err)
	_, err = f.manager.OpenRemote(newFakeEditor())
	require.NoError(t, err)

	localEd.fire(editor.EventClose, "")

	assert.Equal(t, []int{0}, f.codes)
	assert.Equal(t, 0, f.manager.Len())
}

func TestExitFlushErrorsDoNotStopShutdown(t *testing.T) {
	f := newExitFixture(t)

	f.exit.OnFlush(func() error { return errors.New("disk full") })
	f.exit.Trigger()

	assert.Equal(t, []int{0}, f.codes)
}
