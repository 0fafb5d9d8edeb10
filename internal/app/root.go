package app

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/themetool/internal/config"
	"github.com/blackwell-systems/themetool/internal/logging"
	"github.com/blackwell-systems/themetool/internal/patcher"
)

var (
	configDir   string
	dbPath      string
	logLevel    string
	logFile     string
	noHistory   bool
	payloadPath string

	// cfg is loaded by the root pre-run hook before any command runs.
	cfg = config.Default()

	logCloser io.Closer

	// RootCmd is the root command for themetool
	RootCmd = &cobra.Command{
		Use:   "themetool",
		Short: "Install and manage the SecureUxTheme theme signature bypass",
		Long: `themetool installs SecureUxTheme, a verifier DLL that lets Windows load
unsigned visual styles, by registering it in the Image File Execution
Options of winlogon.exe and optionally explorer.exe, LogonUI.exe and
SystemSettings.exe.

All install and uninstall operations require an elevated prompt. A reboot
is needed before the shim is loaded.

Examples:
  # Show whether the shim is installed and loaded
  themetool status

  # Install for winlogon and explorer, then reboot
  themetool install --explorer --reboot

  # Remove every hook and the shim file
  themetool uninstall

  # Review what the last operation changed
  themetool history latest`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("themetool: SecureUxTheme installer")
			fmt.Println()

			m, err := openManager(false)
			if err == nil && m.Evaluate().Installed != patcher.No {
				fmt.Println("Tip: Run 'themetool status' to see which targets are hooked.")
				fmt.Println("     Run 'themetool uninstall' to remove the shim.")
			} else {
				fmt.Println("Run 'themetool install' from an elevated prompt to get started.")
				fmt.Println("Run 'themetool doctor' to check this system first.")
			}
			fmt.Println("Run 'themetool --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configDir, "config", "", `config directory (default: %AppData%\themetool)`)
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (default: <config>/history.db)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	RootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record operations in the history database")
	RootCmd.PersistentFlags().StringVar(&payloadPath, "payload", "", "path to SecureUxTheme.dll (default: next to the executable)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// setup loads the config file and configures logging. Flags override the
// file.
func setup(cmd *cobra.Command, args []string) error {
	dir, err := getConfigDir()
	if err != nil {
		return err
	}
	loaded, err := config.Load(dir)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	file := cfg.LogFile
	if logFile != "" {
		file = logFile
	}

	_, closer, err := logging.New(logging.Options{Level: level, File: file})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	logCloser = closer
	log.Debug().Str("config", dir).Str("command", cmd.Name()).Msg("starting")
	return nil
}

// getConfigDir returns the config directory, using the flag value or default
func getConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the history database path, using the flag value or
// the configured default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return cfg.HistoryFile(dir), nil
}

// historyEnabled reports whether operations are journaled.
func historyEnabled() bool {
	return cfg.History && !noHistory
}
