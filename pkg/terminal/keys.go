package terminal

import (
	"io"
	"sync"
)

const keyCtrlC = 0x03

// clearLine moves to the end of the line and erases everything before the
// cursor, which is how the line editor discards an interrupted line.
var clearLine = []byte("\x1b[F\x15")

// KeyForwarder relays raw keystrokes to the line editor. Ctrl-C is reported
// through OnInterrupt and replaced by a line clear. Inject adds synthetic
// keystrokes, waking a pending Read.
type KeyForwarder struct {
	src         io.Reader
	onInterrupt func()

	data     chan []byte
	injected chan []byte
	pending  []byte
	start    sync.Once

	mu  sync.Mutex
	err error
}

// NewKeyForwarder wraps src
func NewKeyForwarder(src io.Reader, onInterrupt func()) *KeyForwarder {
	return &KeyForwarder{
		src:         src,
		onInterrupt: onInterrupt,
		data:        make(chan []byte),
		injected:    make(chan []byte, 16),
	}
}

// SetInterruptHandler replaces the Ctrl-C callback. Call before the first Read.
func (k *KeyForwarder) SetInterruptHandler(fn func()) {
	k.onInterrupt = fn
}

// Inject queues keys to be read before further terminal input. Keys are
// dropped when the queue is full.
func (k *KeyForwarder) Inject(keys []byte) {
	if len(keys) == 0 {
		return
	}
	select {
	case k.injected <- append([]byte(nil), keys...):
	default:
	}
}

// Read returns injected keys or translated terminal input
func (k *KeyForwarder) Read(p []byte) (int, error) {
	k.start.Do(func() { go k.pump() })

	for len(k.pending) == 0 {
		select {
		case keys := <-k.injected:
			k.pending = keys
		case chunk, ok := <-k.data:
			if !ok {
				return 0, k.readErr()
			}
			k.pending = chunk
		}
	}

	n := copy(p, k.pending)
	k.pending = k.pending[n:]
	return n, nil
}

func (k *KeyForwarder) pump() {
	buf := make([]byte, 256)
	for {
		n, err := k.src.Read(buf)
		if n > 0 {
			if chunk := k.translate(buf[:n]); len(chunk) > 0 {
				k.data <- chunk
			}
		}
		if err != nil {
			k.mu.Lock()
			k.err = err
			k.mu.Unlock()
			close(k.data)
			return
		}
	}
}

func (k *KeyForwarder) translate(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		if b != keyCtrlC {
			out = append(out, b)
			continue
		}
		if k.onInterrupt != nil {
			k.onInterrupt()
		}
		out = append(out, clearLine...)
	}
	return out
}

func (k *KeyForwarder) readErr() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.err == nil {
		return io.EOF
	}
	return k.err
}
