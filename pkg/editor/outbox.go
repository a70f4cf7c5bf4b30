package editor

import (
	"errors"
	"io"
	"sync"
	"time"
)

const (
	// DefaultQueueSize is the number of pending writes a remote client may lag behind
	DefaultQueueSize = 256
	// DefaultWriteTimeout bounds a single write to a remote client
	DefaultWriteTimeout = 10 * time.Second
)

var (
	// ErrOutputOverflow is reported when a client stops draining its output
	ErrOutputOverflow = errors.New("editor: output queue full")
	// ErrOutputClosed is returned by writes after the output was closed
	ErrOutputClosed = errors.New("editor: output closed")
)

// deadliner is implemented by connections that support write deadlines
type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// outbox decouples writers on the loop goroutine from a slow transport.
// Writes only enqueue; a pump goroutine performs the transport writes in
// order. A full queue or a failed write reports through onFail once and
// tears the transport down via finalize.
type outbox struct {
	queue    chan []byte
	closing  chan struct{}
	abort    chan struct{}
	write    func(p []byte) error
	finalize func()
	onFail   func(err error)

	mu      sync.Mutex
	started bool
	closed  bool

	failOnce  sync.Once
	finalOnce sync.Once
}

func newOutbox(size int, write func(p []byte) error, finalize func(), onFail func(err error)) *outbox {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &outbox{
		queue:    make(chan []byte, size),
		closing:  make(chan struct{}),
		abort:    make(chan struct{}),
		write:    write,
		finalize: finalize,
		onFail:   onFail,
	}
}

// start launches the pump. It must be called at most once.
func (o *outbox) start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.started = true
	go o.pump()
}

// Write enqueues a copy of p without blocking
func (o *outbox) Write(p []byte) (int, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return 0, ErrOutputClosed
	}

	select {
	case o.queue <- append([]byte(nil), p...):
		o.mu.Unlock()
		return len(p), nil
	default:
	}

	o.closed = true
	o.mu.Unlock()

	o.fail(ErrOutputOverflow)
	return 0, ErrOutputOverflow
}

// close stops accepting writes. Queued data is still delivered before the
// transport is finalized, unless a failure already aborted the pump.
func (o *outbox) close() {
	o.mu.Lock()
	if o.closed && o.isClosing() {
		o.mu.Unlock()
		return
	}
	o.closed = true
	started := o.started
	close(o.closing)
	o.mu.Unlock()

	if !started {
		o.final()
	}
}

func (o *outbox) isClosing() bool {
	select {
	case <-o.closing:
		return true
	default:
		return false
	}
}

func (o *outbox) pump() {
	defer o.final()

	for {
		select {
		case p := <-o.queue:
			if err := o.write(p); err != nil {
				o.fail(err)
				return
			}
		case <-o.abort:
			return
		case <-o.closing:
			o.drain()
			return
		}
	}
}

func (o *outbox) drain() {
	for {
		select {
		case p := <-o.queue:
			if err := o.write(p); err != nil {
				return
			}
		case <-o.abort:
			return
		default:
			return
		}
	}
}

// fail aborts the pump and closes the transport, which also unblocks a
// write in progress.
func (o *outbox) fail(err error) {
	o.failOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		close(o.abort)
		if o.onFail != nil {
			o.onFail(err)
		}
		o.final()
	})
}

func (o *outbox) final() {
	o.finalOnce.Do(func() {
		if o.finalize != nil {
			o.finalize()
		}
	})
}

// writeWithDeadline writes p to w, bounding the write when w supports it
func writeWithDeadline(w io.Writer, timeout time.Duration) func(p []byte) error {
	return func(p []byte) error {
		if d, ok := w.(deadliner); ok && timeout > 0 {
			_ = d.SetWriteDeadline(time.Now().Add(timeout))
		}
		_, err := w.Write(p)
		return err
	}
}
