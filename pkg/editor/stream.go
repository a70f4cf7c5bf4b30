package editor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/harun/sockrepl/pkg/reactor"
	"github.com/rs/zerolog"
)

// StreamConfig configures a StreamEditor
type StreamConfig struct {
	Reader io.Reader
	Writer io.Writer
	// Closer is closed by Close. Optional.
	Closer io.Closer
	Poster reactor.Poster
	Logger zerolog.Logger
	// OnError is called on read failures and on output failures
	OnError func(err error)
	// QueueSize enables queued output: writes never block the caller and a
	// client lagging by more than QueueSize writes is disconnected. Zero
	// writes synchronously, which suits the local terminal.
	QueueSize int
	// WriteTimeout bounds each queued write when Writer supports deadlines.
	// Defaults to DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// StreamEditor reads newline-delimited lines from a byte stream.
// A trailing "\r" is stripped, so "\r\n" terminated clients work too.
type StreamEditor struct {
	emitter

	reader  io.Reader
	out     io.Writer
	queue   *outbox
	closer  io.Closer
	onError func(err error)

	prompt  string
	started bool
}

// NewStreamEditor creates a stream editor
func NewStreamEditor(cfg StreamConfig) (*StreamEditor, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if cfg.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if cfg.Poster == nil {
		return nil, fmt.Errorf("poster is required")
	}

	s := &StreamEditor{
		reader:  cfg.Reader,
		closer:  cfg.Closer,
		onError: cfg.OnError,
	}
	s.emitter.init(cfg.Poster, cfg.Logger)

	if cfg.QueueSize > 0 {
		timeout := cfg.WriteTimeout
		if timeout <= 0 {
			timeout = DefaultWriteTimeout
		}
		s.queue = newOutbox(cfg.QueueSize, writeWithDeadline(cfg.Writer, timeout), func() { _ = s.closeTransport() }, s.outputFailed)
		s.out = s.queue
	} else {
		s.out = &syncWriter{w: cfg.Writer}
	}
	return s, nil
}

// SetPrompt sets the prompt
func (s *StreamEditor) SetPrompt(prompt string) {
	s.prompt = prompt
}

// Prompt writes the prompt without a line terminator
func (s *StreamEditor) Prompt() {
	if s.closed.Load() {
		return
	}
	_, _ = io.WriteString(s.out, s.prompt)
}

// Interrupt ends the echoed line and emits SIGINT
func (s *StreamEditor) Interrupt() {
	_, _ = io.WriteString(s.out, "\n")
	s.emit(EventSIGINT, "")
}

// Output returns the stream's writer
func (s *StreamEditor) Output() io.Writer {
	return s.out
}

// Start launches the reader goroutine
func (s *StreamEditor) Start() error {
	if s.started {
		return fmt.Errorf("editor already started")
	}
	s.started = true

	if s.queue != nil {
		s.queue.start()
	}
	go s.readLoop()
	return nil
}

// Close closes the underlying stream, if closable. With queued output the
// stream is closed once pending output is written.
func (s *StreamEditor) Close() error {
	if !s.markClosed() {
		return nil
	}
	if s.queue != nil {
		s.queue.close()
		return nil
	}
	return s.closeTransport()
}

func (s *StreamEditor) closeTransport() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// outputFailed runs once when queued output overflows or a write fails
func (s *StreamEditor) outputFailed(err error) {
	if s.closed.Load() {
		return
	}
	s.logger.Warn().Err(err).Msg("Stream write failed")
	if s.onError != nil {
		s.onError(err)
	}
	s.emitClose()
}

func (s *StreamEditor) readLoop() {
	r := bufio.NewReader(s.reader)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 && (err == nil || err == io.EOF) {
			s.emit(EventLine, trimLine(line))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !s.closed.Load() {
				s.logger.Warn().Err(err).Msg("Stream read failed")
				if s.onError != nil {
					s.onError(err)
				}
			}
			s.emitClose()
			return
		}
	}
}

func trimLine(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// syncWriter serializes writes from the loop and from evaluated code
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
