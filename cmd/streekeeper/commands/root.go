// Package commands provides the CLI commands for streekeeper.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/streekit/streekeeper/internal/control"
	"github.com/streekit/streekeeper/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	apiAddr   string
)

var rootCmd = &cobra.Command{
	Use:   "streekeeper",
	Short: "Streekeeper - keeper daemon for the Syntax Tree language server",
	Long: `Streekeeper supervises the Syntax Tree (stree) language server for a
Ruby workspace: it resolves the right executable, launches and watches
it, recovers from crashes, and exposes a local control API.

Run 'streekeeper serve' to start the daemon, then use the other
subcommands (status, restart, visualize, ...) to talk to it.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()

		// Client subcommands stay quiet on stderr unless asked;
		// serve reconfigures logging with its file and ring sinks.
		out := io.Writer(os.Stderr)
		if !printLogs {
			out = io.Discard
		}
		logging.Init(logging.Config{
			Level:    logging.ParseLevel(logLevel),
			Output:   out,
			Pretty:   true,
			RingSize: -1,
		})
	},
	// If no subcommand, show help
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "", "Daemon control API address (default 127.0.0.1:7633)")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("streekeeper %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(visualizeCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(mcpCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// apiClient builds a control client for the configured daemon address.
func apiClient() *control.Client {
	return control.New(apiAddr)
}
