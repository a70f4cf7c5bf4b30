package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, err := execute(t, "stop", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "Stop a running sockrepl shell")
		assert.Contains(t, out, "timeout")
	})

	t.Run("not running", func(t *testing.T) {
		out, err := execute(t, "stop", "--config", tempConfigPath(t))
		require.NoError(t, err)
		assert.Contains(t, out, "sockrepl is not running")
	})
}
