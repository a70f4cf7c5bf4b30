package cli

import (
	"fmt"
	"time"

	"github.com/harun/sockrepl/internal/shell"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shell status",
	Long:  `Show whether a sockrepl shell is running for the configured data directory.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	info, err := shell.ReadPIDFile(shell.PIDFilePath(cfg.DataDir))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !info.Running {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	fmt.Fprintf(out, "Status: running\n")
	fmt.Fprintf(out, "PID: %d\n", info.PID)
	fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.Since)))
	if addr := cfg.SocketAddr(); addr != "" {
		fmt.Fprintf(out, "Socket: %s\n", addr)
	}
	if addr := cfg.WebSocketAddr(); addr != "" {
		fmt.Fprintf(out, "WebSocket: %s\n", addr)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
