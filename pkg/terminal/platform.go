package terminal

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Platform reports whether interactive line editing is possible
type Platform interface {
	SupportsRawMode() bool
}

// Sizer is implemented by platforms that know the terminal dimensions
type Sizer interface {
	Size() (width, height int, err error)
}

// PlatformFunc adapts a function to Platform
type PlatformFunc func() bool

// SupportsRawMode calls f
func (f PlatformFunc) SupportsRawMode() bool {
	return f()
}

// FilePlatform checks a terminal file descriptor
type FilePlatform struct {
	Fd int
	// Getenv defaults to os.Getenv
	Getenv func(key string) string
}

// DefaultPlatform checks the process's standard input
func DefaultPlatform() *FilePlatform {
	return &FilePlatform{Fd: int(os.Stdin.Fd())}
}

// SupportsRawMode reports true when the descriptor is a terminal that is not
// declared dumb through TERM
func (p *FilePlatform) SupportsRawMode() bool {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(p.Fd)
}

// Size returns the terminal dimensions
func (p *FilePlatform) Size() (int, int, error) {
	return term.GetSize(p.Fd)
}

// RawMode switches a terminal in and out of raw input mode
type RawMode interface {
	Enable() error
	Restore() error
}

// FileRawMode puts a file descriptor in raw mode
type FileRawMode struct {
	Fd    int
	state *term.State
}

// NewRawMode controls the process's standard input
func NewRawMode() *FileRawMode {
	return &FileRawMode{Fd: int(os.Stdin.Fd())}
}

// Enable switches to raw mode, remembering the previous state
func (r *FileRawMode) Enable() error {
	if r.state != nil {
		return nil
	}
	state, err := term.MakeRaw(r.Fd)
	if err != nil {
		return fmt.Errorf("failed to enable raw mode: %w", err)
	}
	r.state = state
	return nil
}

// Restore returns the terminal to the state saved by Enable
func (r *FileRawMode) Restore() error {
	if r.state == nil {
		return nil
	}
	state := r.state
	r.state = nil
	if err := term.Restore(r.Fd, state); err != nil {
		return fmt.Errorf("failed to restore terminal: %w", err)
	}
	return nil
}
