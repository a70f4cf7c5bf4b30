package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/harun/sockrepl/internal/shell"
	"github.com/spf13/cobra"
)

var (
	stopTimeout int
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running shell",
	Long: `Stop a running sockrepl shell gracefully.
Sends SIGTERM, which runs the same exit sequence as typing an exit command:
listeners close, every session is destroyed and history is flushed.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 10, "timeout in seconds to wait for the shell to stop")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pidFile := shell.PIDFilePath(cfg.DataDir)
	out := cmd.OutOrStdout()

	info, err := shell.ReadPIDFile(pidFile)
	if err != nil {
		return err
	}
	if !info.Running {
		fmt.Fprintln(out, "sockrepl is not running")
		return nil
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for process to stop with timeout
	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if info, err := shell.ReadPIDFile(pidFile); err == nil && !info.Running {
			fmt.Fprintln(out, "sockrepl stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	// Force kill if timeout
	fmt.Fprintln(out, "Timeout reached, sending SIGKILL...")
	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	_ = os.Remove(pidFile)
	fmt.Fprintln(out, "sockrepl killed")
	return nil
}
