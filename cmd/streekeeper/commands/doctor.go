package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/streekit/streekeeper/internal/doctor"
)

var doctorDir string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment for problems",
	Long: `Check that the tools the language server depends on are available and
that the configuration is sound: ruby, gem and bundle on PATH, a
resolvable stree executable, parseable settings files and plausible
plugin names.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorDir, "workspace", "", "Workspace directory (default: current directory)")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(doctorDir)
	if err != nil {
		return err
	}

	results := doctor.New(workDir).Run(cmd.Context())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	failed := 0
	for _, r := range results {
		marker := "ok"
		switch r.Status {
		case "warn":
			marker = "warn"
		case "fail":
			marker = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "[%s]\t%s\t%s\t\n", marker, r.Name, r.Detail)
		if r.Hint != "" {
			fmt.Fprintf(w, "\t\thint: %s\t\n", r.Hint)
		}
	}
	w.Flush()

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
