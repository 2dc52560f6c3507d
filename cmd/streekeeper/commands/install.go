package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/streekit/streekeeper/internal/config"
	"github.com/streekit/streekeeper/internal/installer"
	"github.com/streekit/streekeeper/internal/logging"
)

var installDir string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the syntax_tree gem",
	Long: `Run the configured install command (default "gem install syntax_tree")
in the workspace. This is the same remediation the daemon offers when
the language server executable cannot be found.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installDir, "workspace", "", "Workspace directory (default: current directory)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(installDir)
	if err != nil {
		return err
	}

	// The installer streams gem output through the logger, so wire it
	// to stderr for this command regardless of --print-logs.
	logging.Init(logging.Config{
		Level:    logging.ParseLevel(logLevel),
		Output:   os.Stderr,
		Pretty:   true,
		RingSize: -1,
	})

	inst := installer.New(workDir, func() string {
		settings, err := config.Load(workDir)
		if err != nil {
			return ""
		}
		return settings.Advanced.InstallCommand
	})

	words, err := inst.Command()
	if err != nil {
		return err
	}
	fmt.Printf("Running: %s\n", strings.Join(words, " "))

	if err := inst.Install(cmd.Context()); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	fmt.Println("Install finished")
	return nil
}
