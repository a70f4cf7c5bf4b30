package listener

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/sockrepl/pkg/engine"
	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/harun/sockrepl/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// echoEngine dispatches every line and echoes it with the session id
type echoEngine struct{}

func (echoEngine) IsReady(text string) bool { return !strings.HasSuffix(text, "\\\n") }

func (echoEngine) Execute(text string, ctx engine.ExecContext) {
	fmt.Fprintf(ctx.Output(), "[%d] %s", ctx.ID(), text)
}

func (echoEngine) CurrentNamespace() string { return "main" }

func (echoEngine) ContinuationIndent(string) int { return 0 }

type fixture struct {
	loop    *reactor.Loop
	manager *session.Manager
	errCh   chan error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	loop := reactor.New(zerolog.Nop())
	m, err := session.NewManager(session.ManagerConfig{Engine: echoEngine{}, Logger: zerolog.Nop()})
	require.NoError(t, err)

	f := &fixture{loop: loop, manager: m, errCh: make(chan error, 1)}
	go func() { f.errCh <- loop.Run(context.Background()) }()
	return f
}

func (f *fixture) ids(t *testing.T) []int {
	t.Helper()

	var ids []int
	require.NoError(t, f.loop.Do(func() { ids = f.manager.IDs() }))
	return ids
}

func (f *fixture) waitIDs(t *testing.T, want []int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, f.ids(t))
	}, 2*time.Second, 10*time.Millisecond)
}

func (f *fixture) shutdown(t *testing.T) {
	t.Helper()

	require.NoError(t, f.loop.Do(f.manager.DestroyAll))
	f.loop.Close()
	require.NoError(t, <-f.errCh)
}

func readUntil(t *testing.T, r *bufio.Reader, conn net.Conn, suffix string) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var b strings.Builder
	for !strings.HasSuffix(b.String(), suffix) {
		c, err := r.ReadByte()
		require.NoError(t, err, "read so far: %q", b.String())
		b.WriteByte(c)
	}
	return b.String()
}

func TestNewValidatesConfig(t *testing.T) {
	loop := reactor.New(zerolog.Nop())
	m, err := session.NewManager(session.ManagerConfig{Engine: echoEngine{}})
	require.NoError(t, err)

	_, err = New(Config{Loop: loop, Manager: m})
	assert.Error(t, err)
	_, err = New(Config{Addr: "127.0.0.1:0", Manager: m})
	assert.Error(t, err)
	_, err = New(Config{Addr: "127.0.0.1:0", Loop: loop})
	assert.Error(t, err)
	_, err = NewWebSocket(Config{Addr: "127.0.0.1:0", Loop: loop})
	assert.Error(t, err)
}

func TestTwoConnectionsGetSequentialIDs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t)
	l, err := New(Config{Addr: "127.0.0.1:0", Loop: f.loop, Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, l.Listen(context.Background()))

	first, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	f.waitIDs(t, []int{1})

	second, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	f.waitIDs(t, []int{1, 2})

	require.NoError(t, first.Close())
	f.waitIDs(t, []int{2})

	require.NoError(t, l.Close())
	f.shutdown(t)
}

func TestLinesRoundTrip(t *testing.T) {
	f := newFixture(t)
	l, err := New(Config{Addr: "127.0.0.1:0", Loop: f.loop, Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, l.Listen(context.Background()))
	defer l.Close()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	assert.Equal(t, "main=> ", readUntil(t, r, conn, "=> "))

	_, err = conn.Write([]byte("one \\\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "  #_=> ", readUntil(t, r, conn, "=> "))

	_, err = conn.Write([]byte("two\n"))
	require.NoError(t, err)
	assert.Equal(t, "[1] one \\\ntwo\nmain=> ", readUntil(t, r, conn, "main=> "))

	f.shutdown(t)
}

func TestCloseKeepsOpenSessions(t *testing.T) {
	f := newFixture(t)
	l, err := New(Config{Addr: "127.0.0.1:0", Loop: f.loop, Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, l.Listen(context.Background()))
	addr := l.Addr().String()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	f.waitIDs(t, []int{1})

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Listen(context.Background()), ErrClosed)

	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, []int{1}, f.ids(t))

	f.shutdown(t)
}

func TestListenFailsOnBusyPort(t *testing.T) {
	f := newFixture(t)
	defer f.shutdown(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	l, err := New(Config{Addr: busy.Addr().String(), Loop: f.loop, Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Error(t, l.Listen(context.Background()))
}

func TestListenerStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	defer f.shutdown(t)

	ctx, cancel := context.WithCancel(context.Background())
	l, err := New(Config{Addr: "127.0.0.1:0", Loop: f.loop, Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, l.Listen(ctx))
	addr := l.Addr().String()

	cancel()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketSharesIDSequence(t *testing.T) {
	f := newFixture(t)

	tcp, err := New(Config{Addr: "127.0.0.1:0", Loop: f.loop, Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, tcp.Listen(context.Background()))
	defer tcp.Close()

	ws, err := NewWebSocket(Config{Addr: "127.0.0.1:0", Loop: f.loop, Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, ws.Listen(context.Background()))
	defer ws.Close()

	conn, err := net.Dial("tcp", tcp.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	f.waitIDs(t, []int{1})

	url := "ws://" + ws.Addr().String() + WebSocketPath
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()
	f.waitIDs(t, []int{1, 2})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "main=> ", string(msg))

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hi\n")))
	_, msg, err = client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "[2] hi\n", string(msg))

	require.NoError(t, ws.Close())
	assert.Equal(t, []int{1, 2}, f.ids(t))

	require.NoError(t, client.Close())
	f.waitIDs(t, []int{1})

	f.shutdown(t)
}

func TestStalledClientDoesNotBlockOtherSessions(t *testing.T) {
	f := newFixture(t)
	l, err := New(Config{
		Addr:         "127.0.0.1:0",
		Loop:         f.loop,
		Manager:      f.manager,
		Logger:       zerolog.Nop(),
		QueueSize:    2,
		WriteTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, l.Listen(context.Background()))
	defer l.Close()

	stalled, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer stalled.Close()
	f.waitIDs(t, []int{1})

	// the echo of this line is far larger than the socket buffers and the
	// client never reads it
	sent := make(chan error, 1)
	go func() {
		_, err := stalled.Write([]byte(strings.Repeat("x", 16<<20) + "\n"))
		sent <- err
	}()

	healthy, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer healthy.Close()
	r := bufio.NewReader(healthy)
	readUntil(t, r, healthy, "main=> ")

	require.NoError(t, <-sent)

	_, err = healthy.Write([]byte("ping\n"))
	require.NoError(t, err)
	assert.Equal(t, "[2] ping\nmain=> ", readUntil(t, r, healthy, "main=> "))

	// the stalled session is dropped on its own
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int{2}, f.ids(t))
	}, 5*time.Second, 20*time.Millisecond)

	f.shutdown(t)
}
