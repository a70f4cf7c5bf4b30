package cli

import (
	"context"
	"fmt"

	"github.com/harun/sockrepl/internal/config"
	"github.com/harun/sockrepl/internal/logger"
	"github.com/harun/sockrepl/internal/shell"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the interactive shell",
	Long: `Start the interactive shell on the local terminal.
With a socket port configured, remote clients can connect and get sessions
of their own. Typing an exit command in any session stops everything.`,
	RunE: runStart,
}

func init() {
	addStartFlags(startCmd)
	rootCmd.AddCommand(startCmd)
}

func addStartFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Bool("dumb-terminal", false, "read the local terminal line by line")
	flags.Int("socket-port", 0, "TCP port for remote sessions (0 disables)")
	flags.Int("websocket-port", 0, "websocket port for remote sessions (0 disables)")
	flags.Int("metrics-port", 0, "serve prometheus metrics on this port")
	flags.Bool("log-console", false, "also write logs to stderr")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pidFile := shell.PIDFilePath(cfg.DataDir)
	if info, err := shell.ReadPIDFile(pidFile); err == nil && info.Running {
		return fmt.Errorf("sockrepl is already running (PID %d, PID file: %s)", info.PID, pidFile)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	sh, err := shell.New(cfg, log, shell.Options{})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := sh.Start(ctx); err != nil {
		_ = sh.Stop()
		return err
	}
	return sh.Run(ctx)
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if flags.Changed("dumb-terminal") {
		cfg.Repl.DumbTerminal, _ = flags.GetBool("dumb-terminal")
	}
	if flags.Changed("socket-port") {
		cfg.Repl.SocketPort, _ = flags.GetInt("socket-port")
	}
	if flags.Changed("websocket-port") {
		cfg.Repl.WebSocketPort, _ = flags.GetInt("websocket-port")
	}
	if flags.Changed("metrics-port") {
		cfg.Metrics.Port, _ = flags.GetInt("metrics-port")
		cfg.Metrics.Enabled = cfg.Metrics.Port != 0
	}
	if flags.Changed("log-console") {
		cfg.Logging.Console, _ = flags.GetBool("log-console")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
