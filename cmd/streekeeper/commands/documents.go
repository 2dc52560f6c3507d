package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize <file>",
	Short: "Print the syntax tree of a Ruby file",
	Long: `Ask the running language server for the syntax tree of a file and
print it. The file must match the configured document selector.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		result, err := apiClient().Visualize(cmd.Context(), path)
		if err != nil {
			return err
		}
		fmt.Print(result.Tree)
		return nil
	},
}

var formatCmd = &cobra.Command{
	Use:   "format <file>",
	Short: "Preview formatting changes for a Ruby file",
	Long: `Ask the running language server to format a file and print the
resulting diff. The file on disk is not modified.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		result, err := apiClient().Format(cmd.Context(), path)
		if err != nil {
			return err
		}
		if !result.Changed {
			fmt.Printf("%s is already formatted\n", args[0])
			return nil
		}
		fmt.Print(result.Diff)
		return nil
	},
}
