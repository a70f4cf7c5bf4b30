package editor

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/rs/zerolog"
)

// WebSocketConfig configures a WebSocketEditor
type WebSocketConfig struct {
	Conn    *websocket.Conn
	Poster  reactor.Poster
	Logger  zerolog.Logger
	OnError func(err error)
	// QueueSize is the number of frames a client may lag behind before it is
	// disconnected. Defaults to DefaultQueueSize.
	QueueSize int
	// WriteTimeout bounds each frame write. Defaults to DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// WebSocketEditor exchanges text frames with a browser client. Each inbound
// frame may carry several newline-separated lines; each write is one frame.
// Frames are queued and sent by a writer goroutine.
type WebSocketEditor struct {
	emitter

	conn    *websocket.Conn
	queue   *outbox
	timeout time.Duration
	failed  atomic.Bool
	onError func(err error)

	prompt  string
	started bool
}

// NewWebSocketEditor creates a websocket editor
func NewWebSocketEditor(cfg WebSocketConfig) (*WebSocketEditor, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if cfg.Poster == nil {
		return nil, fmt.Errorf("poster is required")
	}

	w := &WebSocketEditor{
		conn:    cfg.Conn,
		timeout: cfg.WriteTimeout,
		onError: cfg.OnError,
	}
	if w.timeout <= 0 {
		w.timeout = DefaultWriteTimeout
	}
	w.emitter.init(cfg.Poster, cfg.Logger)
	w.queue = newOutbox(cfg.QueueSize, w.writeFrame, w.closeConn, w.outputFailed)
	return w, nil
}

// SetPrompt sets the prompt
func (w *WebSocketEditor) SetPrompt(prompt string) {
	w.prompt = prompt
}

// Prompt sends the prompt as its own frame
func (w *WebSocketEditor) Prompt() {
	if w.closed.Load() {
		return
	}
	_, _ = io.WriteString(w, w.prompt)
}

// Output returns a writer that sends one text frame per write
func (w *WebSocketEditor) Output() io.Writer {
	return w
}

// Write queues p as one text frame
func (w *WebSocketEditor) Write(p []byte) (int, error) {
	return w.queue.Write(p)
}

func (w *WebSocketEditor) writeFrame(p []byte) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return w.conn.WriteMessage(websocket.TextMessage, p)
}

// Start launches the reader goroutine
func (w *WebSocketEditor) Start() error {
	if w.started {
		return fmt.Errorf("editor already started")
	}
	w.started = true

	w.queue.start()
	go w.readLoop()
	return nil
}

// Close flushes queued frames, then sends a close frame and closes the
// connection. It does not wait for the client.
func (w *WebSocketEditor) Close() error {
	if !w.markClosed() {
		return nil
	}
	w.queue.close()
	return nil
}

func (w *WebSocketEditor) closeConn() {
	if !w.failed.Load() {
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	_ = w.conn.Close()
}

// outputFailed runs once when the client stops draining frames
func (w *WebSocketEditor) outputFailed(err error) {
	w.failed.Store(true)
	if w.closed.Load() {
		return
	}
	w.logger.Warn().Err(err).Msg("WebSocket write failed")
	if w.onError != nil {
		w.onError(err)
	}
	w.emitClose()
}

func (w *WebSocketEditor) readLoop() {
	for {
		_, message, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !w.closed.Load() {
				w.logger.Warn().Err(err).Msg("WebSocket read failed")
				if w.onError != nil {
					w.onError(err)
				}
			}
			w.emitClose()
			return
		}

		for _, line := range splitFrame(string(message)) {
			w.emit(EventLine, line)
		}
	}
}

// splitFrame splits a frame into lines. A trailing terminator does not
// produce an extra empty line.
func splitFrame(frame string) []string {
	frame = strings.TrimSuffix(frame, "\n")
	lines := strings.Split(frame, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
