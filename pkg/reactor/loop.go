package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned when posting to a closed loop
	ErrClosed = errors.New("reactor: loop closed")
	// ErrRunning is returned when Run is called on a loop that is already running
	ErrRunning = errors.New("reactor: loop already running")
)

// Task is a unit of work executed on the loop goroutine
type Task func()

// Poster accepts tasks for serialized execution
type Poster interface {
	Post(task Task) error
}

// Loop is a FIFO event loop with a single consumer
type Loop struct {
	mu      sync.Mutex
	queue   []Task
	closed  bool
	running bool

	wake    chan struct{}
	stopped chan struct{}
	stopMu  sync.Once

	executed uint64
	logger   zerolog.Logger
}

// New creates a new loop
func New(logger zerolog.Logger) *Loop {
	return &Loop{
		queue:   make([]Task, 0, 16),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logger.With().Str("component", "reactor").Logger(),
	}
}

// Post enqueues a task. It never blocks.
func (l *Loop) Post(task Task) error {
	if task == nil {
		return fmt.Errorf("reactor: task is required")
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	l.signal()
	return nil
}

// Do posts a task and waits until it has run. It must not be called from the
// loop goroutine.
func (l *Loop) Do(task Task) error {
	if task == nil {
		return fmt.Errorf("reactor: task is required")
	}

	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The task may have been the one that stopped the loop.
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Run executes tasks until Close is called or ctx is cancelled.
// Tasks still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.running = true
	l.mu.Unlock()

	defer l.stop()

	l.logger.Debug().Msg("Event loop started")

	for {
		task, ok := l.next()
		if !ok {
			l.logger.Debug().Uint64("executed", l.executed).Msg("Event loop stopped")
			return nil
		}
		if task != nil {
			l.execute(task)
			continue
		}

		select {
		case <-ctx.Done():
			l.Close()
			l.logger.Debug().Uint64("executed", l.executed).Msg("Event loop cancelled")
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Close stops the loop after the task currently running, if any
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	dropped := len(l.queue)
	l.queue = nil
	running := l.running
	l.mu.Unlock()

	if dropped > 0 {
		l.logger.Debug().Int("dropped", dropped).Msg("Dropping queued tasks")
	}

	l.signal()
	if !running {
		l.stop()
	}
}

// Done is closed once the loop has stopped
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}

// Len returns the number of queued tasks
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// next pops the head of the queue. ok is false once the loop is closed;
// a nil task with ok set means the queue is empty.
func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, false
	}
	if len(l.queue) == 0 {
		return nil, true
	}

	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Task panicked")
		}
	}()

	l.executed++
	task()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) stop() {
	l.stopMu.Do(func() {
		close(l.stopped)
	})
}
