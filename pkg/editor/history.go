package editor

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultHistorySize bounds History when no size is given
const DefaultHistorySize = 1000

// History is a bounded list of accepted input lines, persisted one per line
type History struct {
	mu      sync.Mutex
	entries []string
	max     int
}

// NewHistory creates an empty history keeping at most max entries
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add records a line. Blank lines and immediate repeats are skipped.
func (h *History) Add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if len(h.entries) > h.max {
		h.entries = append([]string(nil), h.entries[len(h.entries)-h.max:]...)
	}
}

// Entries returns a copy of the recorded lines, oldest first
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.entries...)
}

// Len returns the number of recorded lines
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.entries)
}

// Load prepends the entries stored at path. A missing file is not an error.
func (h *History) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	var loaded []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			loaded = append(loaded, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(loaded, h.entries...)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	return nil
}

// Flush writes all entries to path, replacing its contents
func (h *History) Flush(path string) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	var b strings.Builder
	for _, entry := range h.Entries() {
		b.WriteString(entry)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
