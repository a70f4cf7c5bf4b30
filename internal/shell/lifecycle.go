package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// PIDFileName is the PID file written into the data directory
const PIDFileName = "sockrepl.pid"

// LifecycleManager owns the PID file of a running shell
type LifecycleManager struct {
	dataDir string
	pidFile string
	logger  zerolog.Logger
}

// NewLifecycleManager creates a lifecycle manager for dataDir
func NewLifecycleManager(dataDir string, logger zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		dataDir: dataDir,
		pidFile: PIDFilePath(dataDir),
		logger:  logger,
	}
}

// PIDFilePath returns the PID file location for dataDir
func PIDFilePath(dataDir string) string {
	return filepath.Join(dataDir, PIDFileName)
}

// Start writes the PID file
func (l *LifecycleManager) Start() error {
	if err := os.MkdirAll(l.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := os.WriteFile(l.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	l.logger.Debug().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("PID file written")

	return nil
}

// Stop removes the PID file
func (l *LifecycleManager) Stop() error {
	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// PIDFile returns the PID file path
func (l *LifecycleManager) PIDFile() string {
	return l.pidFile
}

// ProcessInfo describes the shell recorded in a PID file
type ProcessInfo struct {
	PID     int
	Running bool
	Since   time.Time
}

// ReadPIDFile inspects a PID file. A missing file reports a stopped shell.
func ReadPIDFile(path string) (ProcessInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ProcessInfo{}, nil
	}
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("failed to stat PID file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("invalid PID file: %w", err)
	}

	return ProcessInfo{
		PID:     pid,
		Running: processAlive(pid),
		Since:   info.ModTime(),
	}, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 checks existence
	return process.Signal(syscall.Signal(0)) == nil
}
