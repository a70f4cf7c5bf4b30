package shell

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleManagerStartStop(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "data")

	lm := NewLifecycleManager(tmpDir, zerolog.Nop())
	assert.Equal(t, filepath.Join(tmpDir, "sockrepl.pid"), lm.PIDFile())

	require.NoError(t, lm.Start())

	info, err := ReadPIDFile(lm.PIDFile())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.True(t, info.Running)
	assert.False(t, info.Since.IsZero())

	require.NoError(t, lm.Stop())
	assert.NoFileExists(t, lm.PIDFile())

	// stopping twice is harmless
	require.NoError(t, lm.Stop())
}

func TestReadPIDFileMissing(t *testing.T) {
	info, err := ReadPIDFile(filepath.Join(t.TempDir(), "none.pid"))
	require.NoError(t, err)
	assert.False(t, info.Running)
	assert.Zero(t, info.PID)
}

func TestReadPIDFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	_, err := ReadPIDFile(path)
	assert.Error(t, err)
}

func TestReadPIDFileNonPositive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.pid")
	require.NoError(t, os.WriteFile(path, []byte("0\n"), 0644))

	info, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.False(t, info.Running)
}
